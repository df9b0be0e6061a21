package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/platinummonkey/regionscan/internal/logger"
	"github.com/platinummonkey/regionscan/internal/model"
)

// AzureEngine uses the Azure Computer Vision printed-text OCR endpoint.
// The endpoint reports no word confidence, so the adapter falls back to the
// heuristic estimate.
type AzureEngine struct {
	client computervision.BaseClient
	logger *logger.Logger
}

// NewAzureEngine creates an Azure Computer Vision engine
func NewAzureEngine(endpoint, apiKey string, log *logger.Logger) (*AzureEngine, error) {
	if log == nil {
		log = logger.Get()
	}
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: azure endpoint and key are required", model.ErrConfig)
	}

	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &AzureEngine{client: client, logger: log}, nil
}

// Recognize sends the crop to Azure and flattens regions/lines/words in reading order
func (e *AzureEngine) Recognize(ctx context.Context, image []byte) (*Recognition, error) {
	result, err := e.client.RecognizePrintedTextInStream(
		ctx,
		true,
		io.NopCloser(bytes.NewReader(image)),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		var detailed autorest.DetailedError
		if errors.As(err, &detailed) && detailed.StatusCode == http.StatusBadRequest {
			// Azure rejects undecodable or undersized images with 400
			return nil, fmt.Errorf("%w: azure rejected image: %w", model.ErrRender, err)
		}
		return nil, fmt.Errorf("%w: azure OCR failed: %w", model.ErrOCR, err)
	}

	words := azureWords(result)
	e.logger.WithFields("words", len(words)).Debug("Azure recognition completed")
	return NewRecognition(words, false), nil
}

func azureWords(result computervision.OcrResult) []Word {
	var words []Word
	if result.Regions == nil {
		return words
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, Word{Text: *word.Text})
				}
			}
		}
	}
	return words
}

// Name returns the engine name
func (e *AzureEngine) Name() string {
	return "azure"
}
