package processor

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/doctrove/enrich-cli/pkg/llm"
	"github.com/doctrove/enrich-cli/pkg/paperless"
)

// --- Paperless Mock ---

type mockPaperlessClient struct {
	mock.Mock
}

func (m *mockPaperlessClient) GetDocument(ctx context.Context, id int) (*paperless.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paperless.Document), args.Error(1)
}

func (m *mockPaperlessClient) DownloadContent(ctx context.Context, id int) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *mockPaperlessClient) UpdateDocument(ctx context.Context, id int, update paperless.DocumentUpdate) (*paperless.Document, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paperless.Document), args.Error(1)
}

func (m *mockPaperlessClient) ListTags(ctx context.Context) ([]paperless.Tag, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]paperless.Tag), args.Error(1)
}

func (m *mockPaperlessClient) ListCorrespondents(ctx context.Context) ([]paperless.Correspondent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]paperless.Correspondent), args.Error(1)
}

func (m *mockPaperlessClient) CreateTag(ctx context.Context, name, color string) (*paperless.Tag, error) {
	args := m.Called(ctx, name, color)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paperless.Tag), args.Error(1)
}

func (m *mockPaperlessClient) CreateCorrespondent(ctx context.Context, name string) (*paperless.Correspondent, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paperless.Correspondent), args.Error(1)
}

// --- LLM Provider Mock ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Complete(ctx context.Context, req llm.StructuredRequest) (*llm.StructuredResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.StructuredResponse), args.Error(1)
}
