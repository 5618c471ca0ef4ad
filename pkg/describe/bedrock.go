package describe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/bedrockruntime"
	"github.com/aws/aws-sdk-go/service/bedrockruntime/bedrockruntimeiface"
)

const (
	// DefaultBedrockModel is the Claude model used when none is configured.
	DefaultBedrockModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 100
	temperature      = 0.2
)

const promptTemplate = `
Based on this workflow JSON, generate a clear, concise description (maximum %d words) explaining what this workflow does.
Focus on the main purpose and outcome, not technical details.

Workflow: %s

Description:
`

// BedrockConfig holds the AWS settings for the Bedrock generator.
type BedrockConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	Model     string
	Endpoint  string // Optional, for local emulators
	MaxWords  int
}

// BedrockGenerator asks a Claude model hosted on AWS Bedrock for descriptions.
type BedrockGenerator struct {
	client   bedrockruntimeiface.BedrockRuntimeAPI
	model    string
	maxWords int
	logger   *slog.Logger
}

// NewBedrockGenerator creates an AWS session from config and wraps a Bedrock client.
func NewBedrockGenerator(logger *slog.Logger, config BedrockConfig) (*BedrockGenerator, error) {
	if config.Region == "" {
		return nil, fmt.Errorf("%w: AWS region is not specified", ErrUnavailable)
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}

	if config.AccessKey != "" && config.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}

	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewBedrockGeneratorWithClient(logger, bedrockruntime.New(sess), config.Model, config.MaxWords), nil
}

// NewBedrockGeneratorWithClient wraps an existing client.
func NewBedrockGeneratorWithClient(
	logger *slog.Logger,
	client bedrockruntimeiface.BedrockRuntimeAPI,
	model string,
	maxWords int,
) *BedrockGenerator {
	if model == "" {
		model = DefaultBedrockModel
	}

	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	return &BedrockGenerator{
		client:   client,
		model:    model,
		maxWords: maxWords,
		logger:   logger.With("module", "bedrock_generator", "model", model),
	}
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate implements Generator.
func (g *BedrockGenerator) Generate(ctx context.Context, summary Summary) (string, error) {
	payload, err := summary.JSON()
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		Messages: []claudeMessage{{
			Role:    "user",
			Content: fmt.Sprintf(promptTemplate, g.maxWords, payload),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode bedrock request: %w", err)
	}

	g.logger.DebugContext(ctx, "Invoking model", "workflow_name", summary.Name)

	output, err := g.client.InvokeModelWithContext(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to invoke model: %w", ErrGeneration, err)
	}

	var response claudeResponse

	err = json.Unmarshal(output.Body, &response)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode model response: %w", ErrGeneration, err)
	}

	for _, content := range response.Content {
		if text := strings.TrimSpace(content.Text); text != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("%w: model returned no text", ErrGeneration)
}
