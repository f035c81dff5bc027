package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autofixai/autofix-backend/internal/store"
	"github.com/autofixai/autofix-backend/internal/vector"
)

type fakeConversationStore struct {
	convs map[string]*store.Conversation
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{convs: map[string]*store.Conversation{}}
}

func (f *fakeConversationStore) CreateConversation(_ context.Context, conv *store.Conversation) error {
	if conv.Summaries == nil {
		conv.Summaries = map[string]string{}
	}
	f.convs[conv.ID] = conv
	return nil
}

func (f *fakeConversationStore) GetConversation(_ context.Context, id string) (*store.Conversation, error) {
	return f.convs[id], nil
}

func (f *fakeConversationStore) AppendMessages(_ context.Context, id string, messages ...store.ChatMessage) error {
	f.convs[id].Messages = append(f.convs[id].Messages, messages...)
	return nil
}

func (f *fakeConversationStore) UpdateConversationDocuments(_ context.Context, id string, chunkCount int, summaries map[string]string) error {
	conv := f.convs[id]
	conv.ChunkCount += chunkCount
	for file, summary := range summaries {
		conv.Summaries[file] = summary
	}
	return nil
}

type fakeIndex struct {
	added   map[string][]string // collection -> documents
	matches []vector.Match
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{added: map[string][]string{}}
}

func (f *fakeIndex) Add(_ context.Context, collection string, documents []string, _ []map[string]string, _ []string) error {
	f.added[collection] = append(f.added[collection], documents...)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _, _ string, _ int) ([]vector.Match, error) {
	return f.matches, nil
}

func TestConversation_CreateAssignsID(t *testing.T) {
	convs := newFakeConversationStore()
	svc := NewConversationService(convs, newFakeIndex(), &fakeLLM{})

	conv, err := svc.Create(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "user-1", conv.UserID)
}

func TestConversation_AddDocumentsIndexesAndSummarizes(t *testing.T) {
	convs := newFakeConversationStore()
	index := newFakeIndex()
	llmClient := &fakeLLM{response: "A manual about brakes."}
	svc := NewConversationService(convs, index, llmClient)

	conv, err := svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	summaries, err := svc.AddDocuments(context.Background(), "user-1", conv.ID, []UploadedFile{
		{Name: "brakes.txt", Content: strings.Repeat("brake pads wear out over time ", 100)},
	})
	require.NoError(t, err)

	assert.Equal(t, "A manual about brakes.", summaries["brakes.txt"])
	assert.NotEmpty(t, index.added["conversation_"+conv.ID])
	assert.Greater(t, convs.convs[conv.ID].ChunkCount, 0)
}

func TestConversation_AddDocumentsForbiddenForOtherUser(t *testing.T) {
	convs := newFakeConversationStore()
	svc := NewConversationService(convs, newFakeIndex(), &fakeLLM{})

	conv, err := svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = svc.AddDocuments(context.Background(), "user-2", conv.ID, []UploadedFile{
		{Name: "a.txt", Content: "text"},
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConversation_ChatRequiresDocuments(t *testing.T) {
	convs := newFakeConversationStore()
	svc := NewConversationService(convs, newFakeIndex(), &fakeLLM{})

	conv, err := svc.Create(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = svc.Chat(context.Background(), "user-1", conv.ID, "what now?", 0.1, 3)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestConversation_ChatAppendsHistory(t *testing.T) {
	convs := newFakeConversationStore()
	index := newFakeIndex()
	index.matches = []vector.Match{{Content: "Pads should be replaced at 3mm."}}
	llmClient := &fakeLLM{response: "Replace the pads."}
	svc := NewConversationService(convs, index, llmClient)

	conv, err := svc.Create(context.Background(), "user-1")
	require.NoError(t, err)
	convs.convs[conv.ID].ChunkCount = 5

	result, err := svc.Chat(context.Background(), "user-1", conv.ID, "When should I replace pads?", 0.2, 3)
	require.NoError(t, err)

	assert.Equal(t, "Replace the pads.", result.Response)
	assert.Len(t, result.RelevantChunks, 1)
	assert.Contains(t, llmClient.lastReq.Prompt, "Pads should be replaced at 3mm.")
	assert.Equal(t, 0.2, llmClient.lastReq.Temperature)

	history := convs.convs[conv.ID].Messages
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
}

func TestConversation_ChatUnknownConversation(t *testing.T) {
	svc := NewConversationService(newFakeConversationStore(), newFakeIndex(), &fakeLLM{})

	_, err := svc.Chat(context.Background(), "user-1", "missing", "hello", 0, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}
