package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Extractor turns uploaded files into plain text. TXT is read directly;
// PDF and DOCX are converted by an external converter service, with PDFs
// validated (and optionally cropped to remove running headers/footers)
// through pdfcpu first.
type Extractor struct {
	converterURL string
	client       *http.Client
	timeout      time.Duration

	// header/footer crop in points; zero disables cropping
	cropTop    float64
	cropBottom float64
}

func NewExtractor(converterURL string) *Extractor {
	return &Extractor{
		converterURL: converterURL,
		client:       http.DefaultClient,
		timeout:      120 * time.Second,
	}
}

func NewExtractorFromEnv() *Extractor {
	url := os.Getenv("CONVERTER_URL")
	if url == "" {
		url = "http://localhost:5001/v1/convert/file"
	}
	e := NewExtractor(url)
	if v, err := strconv.ParseFloat(os.Getenv("PDF_CROP_TOP"), 64); err == nil {
		e.cropTop = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("PDF_CROP_BOTTOM"), 64); err == nil {
		e.cropBottom = v
	}
	return e
}

// Text extracts and normalizes the text content of the file at path.
func (e *Extractor) Text(ctx context.Context, path, contentType string) (string, error) {
	switch kind(path, contentType) {
	case "txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read text file: %w", err)
		}
		return cleanText(string(data)), nil
	case "pdf":
		return e.extractPDF(ctx, path)
	case "docx":
		return e.convert(ctx, path)
	default:
		return "", fmt.Errorf("unsupported content type %q for %s", contentType, filepath.Base(path))
	}
}

func kind(path, contentType string) string {
	switch strings.ToLower(contentType) {
	case "application/pdf":
		return "pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	case "text/plain":
		return "txt"
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".txt":
		return "txt"
	}
	return ""
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	if err := api.ValidateFile(path, api.LoadConfiguration()); err != nil {
		return "", fmt.Errorf("invalid PDF: %w", err)
	}

	effective := path
	if e.cropTop > 0 || e.cropBottom > 0 {
		cropped, err := e.cropHeaderFooter(path)
		if err != nil {
			return "", err
		}
		defer os.Remove(cropped)
		effective = cropped
	}

	return e.convert(ctx, effective)
}

// cropHeaderFooter trims the configured top/bottom margins so repeated
// page furniture does not pollute every chunk.
func (e *Extractor) cropHeaderFooter(path string) (string, error) {
	box, err := pdfmodel.ParseBox(fmt.Sprintf("%.2f 0 %.2f 0", e.cropTop, e.cropBottom), pdftypes.POINTS)
	if err != nil {
		return "", fmt.Errorf("failed to parse crop box: %w", err)
	}

	out := filepath.Join(os.TempDir(), "cropped_"+filepath.Base(path))
	if err := api.CropFile(path, out, []string{"1-"}, box, api.LoadConfiguration()); err != nil {
		return "", fmt.Errorf("failed to crop PDF: %w", err)
	}
	return out, nil
}

type converterResponse struct {
	Document struct {
		MdContent string `json:"md_content"`
	} `json:"document"`
}

// convert ships the file to the converter service and returns its text
// rendering.
func (e *Extractor) convert(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	writer.Close()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.converterURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("converter request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("converter returned status %d: %s", resp.StatusCode, string(payload))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var convResp converterResponse
	if err := json.Unmarshal(body, &convResp); err != nil {
		return "", fmt.Errorf("failed to decode converter response: %w", err)
	}
	return cleanText(convResp.Document.MdContent), nil
}

var (
	spacesRunRe   = regexp.MustCompile(`[ \t]+`)
	newlinesRunRe = regexp.MustCompile(`\n{3,}`)
)

// cleanText normalizes whitespace but keeps paragraph breaks, which the
// chunker uses as preferred cut points.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spacesRunRe.ReplaceAllString(text, " ")
	text = newlinesRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
