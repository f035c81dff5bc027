package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// Filenames contain dots, and Mongo treats dots in update paths as nesting.
// The summaries update must therefore set the field as a whole document so
// "brakes.txt" stays a single key instead of becoming {brakes: {txt: ...}}.
func TestConversationDocumentsUpdateKeepsDottedFilenames(t *testing.T) {
	update := conversationDocumentsUpdate(3, map[string]string{
		"brakes.txt": "A manual about brakes.",
	})

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"brakes.txt": "A manual about brakes."}, set["summaries"])
	for key := range set {
		assert.NotContains(t, key, ".")
	}

	assert.Equal(t, bson.M{"chunk_count": 3}, update["$inc"])
}

func TestConversationSummariesBSONRoundTripWithDottedFilename(t *testing.T) {
	conv := Conversation{
		ID:         "conv-1",
		UserID:     "user-1",
		ChunkCount: 3,
		Summaries:  map[string]string{"brakes.txt": "A manual about brakes."},
	}

	raw, err := bson.Marshal(conv)
	require.NoError(t, err)

	var decoded Conversation
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	assert.Equal(t, "A manual about brakes.", decoded.Summaries["brakes.txt"])
}

func TestMergeSummaries(t *testing.T) {
	existing := map[string]string{"brakes.txt": "old", "engine.txt": "engine"}
	merged := mergeSummaries(existing, map[string]string{"brakes.txt": "new"})

	assert.Equal(t, map[string]string{"brakes.txt": "new", "engine.txt": "engine"}, merged)
	// Inputs stay untouched.
	assert.Equal(t, "old", existing["brakes.txt"])
}
