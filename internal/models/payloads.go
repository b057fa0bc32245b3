package models

// These structs define the JSON payloads for HTTP requests and responses
// of the summarizer Cloud Functions.

// SummarizeRequest is the input for the summarize-http function.
// Exactly one of GCSUri and PDFBase64 must be set.
type SummarizeRequest struct {
	GCSUri               string `json:"gcsUri,omitempty"`
	PDFBase64            string `json:"pdfBase64,omitempty"`
	Filename             string `json:"filename,omitempty"`
	PageExtractionPrompt string `json:"pageExtractionPrompt"`
	SummarizerPrompt     string `json:"summarizerPrompt"`
	BatchSize            int    `json:"batchSize"`
	Vision               bool   `json:"vision"`
	OpenAIAPIKey         string `json:"openaiApiKey,omitempty"`
	ExecutionID          string `json:"executionId,omitempty"`
}

// SummarizeResponse is the output of the summarize-http function.
type SummarizeResponse struct {
	Status     string `json:"status"`
	Title      string `json:"title"`
	Markdown   string `json:"markdown"`
	BatchCount int    `json:"batchCount"`
	OutputURI  string `json:"outputUri,omitempty"`
}
