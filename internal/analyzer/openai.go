package analyzer

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/halcyonlabs/reverie/internal/prompt"
	"github.com/halcyonlabs/reverie/pkg/models"
)

// responseSchema is the fixed contract every analysis response must match.
var responseSchema = generateSchema[models.ModelResponse]()

// OpenAIConfig configures the model boundary.
type OpenAIConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int64
}

// OpenAICaller sends analysis requests to the OpenAI Responses API with a
// strict JSON-schema response format.
type OpenAICaller struct {
	client openai.Client
	model  string
	maxOut int64
}

// NewOpenAICaller creates the caller. The credential is assumed present;
// the orchestrator checks for its absence before dispatching.
func NewOpenAICaller(cfg OpenAIConfig) *OpenAICaller {
	return &OpenAICaller{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
		maxOut: cfg.MaxOutputTokens,
	}
}

// Generate sends one request and returns the raw structured payload.
func (c *OpenAICaller) Generate(ctx context.Context, req *prompt.Request) ([]byte, error) {
	content := make(responses.ResponseInputMessageContentListParam, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.Image != nil {
			dataURL := "data:" + part.Image.MIME + ";base64," +
				base64.StdEncoding.EncodeToString(part.Image.Data)
			content = append(content, responses.ResponseInputContentUnionParam{
				OfInputImage: &responses.ResponseInputImageParam{
					ImageURL: openai.String(dataURL),
					Detail:   responses.ResponseInputImageDetailAuto,
				},
			})
			continue
		}
		content = append(content, responses.ResponseInputContentUnionParam{
			OfInputText: &responses.ResponseInputTextParam{Text: part.Text},
		})
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(c.maxOut),
		Instructions:    openai.String(req.Instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				{
					OfMessage: &responses.EasyInputMessageParam{
						Role: responses.EasyInputMessageRoleUser,
						Content: responses.EasyInputMessageContentUnionParam{
							OfInputItemContentList: content,
						},
					},
				},
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "JournalAnalysis",
					Schema:      responseSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Journal analysis and updated pattern profile"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := callWithRetry(ctx, &c.client, params)
	if err != nil {
		return nil, err
	}
	return []byte(resp.OutputText()), nil
}

// callWithRetry retries rate-limited and transient server failures once
// with a short backoff. Anything else fails immediately.
func callWithRetry(ctx context.Context, client *openai.Client, params responses.ResponseNewParams) (*responses.Response, error) {
	const maxAttempts = 2
	backoff := []time.Duration{0, 5 * time.Second}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if backoff[attempt] > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff[attempt]):
			}
		}

		resp, err := client.Responses.New(ctx, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "500") ||
		strings.Contains(msg, "server_error") ||
		strings.Contains(msg, "internal server error")
}
