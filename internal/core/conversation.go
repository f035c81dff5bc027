package core

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/autofixai/autofix-backend/internal/docs"
	"github.com/autofixai/autofix-backend/internal/llm"
	"github.com/autofixai/autofix-backend/internal/store"
	"github.com/autofixai/autofix-backend/internal/vector"
)

const chatTopN = 4

// ConversationStore is the slice of the document store the conversation
// flow needs.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	AppendMessages(ctx context.Context, id string, messages ...store.ChatMessage) error
	UpdateConversationDocuments(ctx context.Context, id string, chunkCount int, summaries map[string]string) error
}

// DocumentIndex persists and retrieves per-conversation document chunks.
type DocumentIndex interface {
	Add(ctx context.Context, collection string, documents []string, metadatas []map[string]string, ids []string) error
	Query(ctx context.Context, collection, text string, topN int) ([]vector.Match, error)
}

// UploadedFile is one multipart upload, already read into memory.
type UploadedFile struct {
	Name    string
	Content string
}

// ChatResult carries the generated reply plus the chunks it was grounded on.
type ChatResult struct {
	Response       string         `json:"response"`
	RelevantChunks []vector.Match `json:"relevant_chunks"`
}

// ConversationService implements the document chat. All state lives in the
// store under the conversation's id, so every call names its conversation
// and concurrent callers never observe each other's history.
type ConversationService struct {
	convs ConversationStore
	index DocumentIndex
	llm   llm.Client
}

func NewConversationService(convs ConversationStore, index DocumentIndex, llmClient llm.Client) *ConversationService {
	return &ConversationService{
		convs: convs,
		index: index,
		llm:   llmClient,
	}
}

func (s *ConversationService) Create(ctx context.Context, userID string) (*store.Conversation, error) {
	conv := &store.Conversation{
		ID:     uuid.NewString(),
		UserID: userID,
	}
	if err := s.convs.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) get(ctx context.Context, userID, convID string) (*store.Conversation, error) {
	conv, err := s.convs.GetConversation(ctx, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", convID, ErrNotFound)
	}
	if conv.UserID != userID {
		return nil, fmt.Errorf("conversation %s: %w", convID, ErrForbidden)
	}
	return conv, nil
}

func collectionForConversation(convID string) string {
	return "conversation_" + convID
}

// AddDocuments chunks the uploaded files, indexes the chunks under the
// conversation's own collection, summarizes each file and persists the
// summaries. Returns the per-file summaries.
func (s *ConversationService) AddDocuments(ctx context.Context, userID, convID string, files []UploadedFile) (map[string]string, error) {
	conv, err := s.get(ctx, userID, convID)
	if err != nil {
		return nil, err
	}

	collection := collectionForConversation(conv.ID)
	summaries := make(map[string]string, len(files))
	totalChunks := 0

	for _, file := range files {
		chunks := docs.Split(file.Content, docs.DefaultChunkSize, docs.DefaultChunkOverlap)
		if len(chunks) == 0 {
			log.Printf("Uploaded file %q produced no chunks, skipping", file.Name)
			continue
		}

		ids := make([]string, len(chunks))
		metadatas := make([]map[string]string, len(chunks))
		for i := range chunks {
			ids[i] = uuid.NewString()
			metadatas[i] = map[string]string{"file": file.Name, "chunk": fmt.Sprintf("%d", i)}
		}
		if err := s.index.Add(ctx, collection, chunks, metadatas, ids); err != nil {
			return nil, fmt.Errorf("failed to index %q: %w", file.Name, err)
		}
		totalChunks += len(chunks)

		summary, err := s.summarize(ctx, file.Name, chunks[0])
		if err != nil {
			log.Printf("Failed to summarize %q: %v. Proceeding without a summary.", file.Name, err)
			continue
		}
		summaries[file.Name] = summary
	}

	if totalChunks == 0 {
		return nil, fmt.Errorf("no chunks produced from uploaded files")
	}

	if err := s.convs.UpdateConversationDocuments(ctx, conv.ID, totalChunks, summaries); err != nil {
		return nil, fmt.Errorf("failed to persist document state: %w", err)
	}
	return summaries, nil
}

// summarize asks the LLM for a short summary based on the file's opening
// chunk.
func (s *ConversationService) summarize(ctx context.Context, name, opening string) (string, error) {
	return s.llm.Generate(ctx, &llm.GenerateRequest{
		Prompt: fmt.Sprintf("Document %q begins:\n\n%s", name, opening),
		System: summarySystemPrompt,
	})
}

// Chat answers a question against the conversation's indexed documents and
// appends both sides of the exchange to the history.
func (s *ConversationService) Chat(ctx context.Context, userID, convID, prompt string, temperature float64, memorySize int) (*ChatResult, error) {
	conv, err := s.get(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	if conv.ChunkCount == 0 {
		return nil, fmt.Errorf("conversation %s: %w", convID, ErrNoDocuments)
	}

	matches, err := s.index.Query(ctx, collectionForConversation(conv.ID), prompt, chatTopN)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation documents: %w", err)
	}

	response, err := s.llm.Generate(ctx, &llm.GenerateRequest{
		Prompt:      ChatPrompt(joinMatches(matches), conv.Summaries, conv.Messages, memorySize, prompt),
		System:      chatSystemPrompt,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	err = s.convs.AppendMessages(ctx, conv.ID,
		store.ChatMessage{Role: "user", Content: prompt},
		store.ChatMessage{Role: "assistant", Content: response},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append messages: %w", err)
	}

	return &ChatResult{Response: response, RelevantChunks: matches}, nil
}
