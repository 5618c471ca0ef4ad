package describe_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/operion-marketplace/pkg/describe"
	"github.com/dukex/operion-marketplace/pkg/mocks"
	"github.com/dukex/operion-marketplace/pkg/models"
	"github.com/dukex/operion-marketplace/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type generatorFunc func(ctx context.Context, summary describe.Summary) (string, error)

func (f generatorFunc) Generate(ctx context.Context, summary describe.Summary) (string, error) {
	return f(ctx, summary)
}

func TestHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		workflow *models.Workflow
		expected string
	}{
		{
			name:     "trigger and action",
			workflow: testutil.CreateTestWorkflow(),
			expected: `Workflow "Backup" triggered by scheduleTrigger using httpRequest (2 nodes total)`,
		},
		{
			name:     "empty workflow",
			workflow: &models.Workflow{Name: "Empty"},
			expected: `Workflow "Empty" (0 nodes total)`,
		},
		{
			name: "many triggers and actions",
			workflow: &models.Workflow{
				Name: "Busy",
				Graph: models.Graph{Nodes: []*models.Node{
					{Name: "a", Type: "n8n-nodes-base.webhookTrigger"},
					{Name: "b", Type: "n8n-nodes-base.cronTrigger"},
					{Name: "c", Type: "trigger:kafka"},
					{Name: "d", Type: "n8n-nodes-base.set"},
					{Name: "e", Type: "n8n-nodes-base.if"},
					{Name: "f", Type: "n8n-nodes-base.slack"},
					{Name: "g", Type: "code"},
				}},
			},
			expected: `Workflow "Busy" triggered by webhookTrigger and cronTrigger and more using set, if, slack and more (7 nodes total)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, describe.Heuristic(tt.workflow))
		})
	}
}

func TestTruncateWords(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "one two three", describe.TruncateWords("  one\ttwo \n three ", 5))
	assert.Equal(t, "one two", describe.TruncateWords("one two three", 2))
	assert.Empty(t, describe.TruncateWords("   ", 3))
}

func TestDescriber_WithoutGeneratorUsesHeuristic(t *testing.T) {
	t.Parallel()

	workflow := testutil.CreateTestWorkflow()
	d := describe.NewDescriber(testLogger())

	description := d.Describe(context.Background(), workflow)

	assert.NotEmpty(t, description)
	assert.Contains(t, description, "2 nodes total")
}

func TestDescriber_UsesGeneratorAndTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 40)

	var received describe.Summary

	d := describe.NewDescriber(testLogger(), describe.WithGenerator(generatorFunc(func(_ context.Context, summary describe.Summary) (string, error) {
		received = summary

		return "  " + long, nil
	})))

	description := d.Describe(context.Background(), testutil.CreateTestWorkflow())

	assert.Len(t, strings.Fields(description), describe.DefaultMaxWords)
	assert.Equal(t, "Backup", received.Name)
	require.Len(t, received.Nodes, 2)
	assert.Equal(t, "n8n-nodes-base.httpRequest", received.Nodes[1].Type)
	assert.Equal(t, "https://backup.example.com", received.Nodes[1].Parameters["url"])
}

func TestDescriber_FallsBackOnError(t *testing.T) {
	t.Parallel()

	d := describe.NewDescriber(testLogger(), describe.WithGenerator(generatorFunc(func(context.Context, describe.Summary) (string, error) {
		return "", describe.ErrUnavailable
	})))

	description := d.Describe(context.Background(), testutil.CreateTestWorkflow())

	assert.Equal(t, `Workflow "Backup" triggered by scheduleTrigger using httpRequest (2 nodes total)`, description)
}

func TestDescriber_FallsBackOnEmptyAnswer(t *testing.T) {
	t.Parallel()

	d := describe.NewDescriber(testLogger(), describe.WithGenerator(generatorFunc(func(context.Context, describe.Summary) (string, error) {
		return " \n ", nil
	})))

	assert.Contains(t, d.Describe(context.Background(), testutil.CreateTestWorkflow()), "nodes total")
}

func TestDescriber_TimeoutFallsBackEvenIfGeneratorHangs(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	d := describe.NewDescriber(testLogger(),
		describe.WithTimeout(50*time.Millisecond),
		describe.WithGenerator(generatorFunc(func(context.Context, describe.Summary) (string, error) {
			<-release

			return "too late", nil
		})),
	)

	start := time.Now()
	description := d.Describe(context.Background(), testutil.CreateTestWorkflow())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Contains(t, description, "nodes total")
}

func TestDescriber_CachesGeneratedDescriptions(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	d := describe.NewDescriber(testLogger(),
		describe.WithCache(describe.NewMemoryCache(time.Minute, time.Minute)),
		describe.WithGenerator(generatorFunc(func(context.Context, describe.Summary) (string, error) {
			calls.Add(1)

			return "Backs up data every hour", nil
		})),
	)

	workflow := testutil.CreateTestWorkflow()

	assert.Equal(t, "Backs up data every hour", d.Describe(context.Background(), workflow))
	assert.Equal(t, "Backs up data every hour", d.Describe(context.Background(), workflow))
	assert.Equal(t, int32(1), calls.Load())

	workflow.Name = "Other"
	d.Describe(context.Background(), workflow)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDescriber_FailuresAreNotCached(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	d := describe.NewDescriber(testLogger(),
		describe.WithCache(describe.NewMemoryCache(time.Minute, time.Minute)),
		describe.WithGenerator(generatorFunc(func(context.Context, describe.Summary) (string, error) {
			if calls.Add(1) == 1 {
				return "", errors.New("throttled")
			}

			return "Generated", nil
		})),
	)

	workflow := testutil.CreateTestWorkflow()

	assert.Contains(t, d.Describe(context.Background(), workflow), "nodes total")
	assert.Equal(t, "Generated", d.Describe(context.Background(), workflow))
}

func TestDescriber_GeneratorReceivesSummary(t *testing.T) {
	t.Parallel()

	generator := &mocks.MockGenerator{}
	generator.On("Generate", mock.Anything, mock.MatchedBy(func(summary describe.Summary) bool {
		return summary.Name == "Backup" && len(summary.Nodes) == 2
	})).Return("  Backs up data on a schedule  ", nil).Once()

	d := describe.NewDescriber(testLogger(), describe.WithGenerator(generator))

	assert.Equal(t, "Backs up data on a schedule", d.Describe(context.Background(), testutil.CreateTestWorkflow()))
	generator.AssertExpectations(t)
}

func TestSummarize_CyclicParametersStillEncode(t *testing.T) {
	t.Parallel()

	params := map[string]any{"url": "x"}
	params["self"] = params

	workflow := &models.Workflow{Name: "Loop", Graph: models.Graph{Nodes: []*models.Node{{Name: "HTTP", Type: "http", Parameters: params}}}}

	payload, err := describe.Summarize(testLogger(), workflow).JSON()
	require.NoError(t, err)
	assert.Contains(t, string(payload), "[Circular]")
}

func TestSummary_JSONIsCapped(t *testing.T) {
	t.Parallel()

	huge := strings.Repeat("x", describe.MaxSummaryBytes)

	workflow := &models.Workflow{Name: "Huge", Graph: models.Graph{Nodes: []*models.Node{
		{Name: "Big", Type: "n8n-nodes-base.code", Parameters: map[string]any{"code": huge}},
	}}}

	payload, err := describe.Summarize(testLogger(), workflow).JSON()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(payload), describe.MaxSummaryBytes)
	assert.Contains(t, string(payload), "n8n-nodes-base.code")
	assert.NotContains(t, string(payload), huge)
}
