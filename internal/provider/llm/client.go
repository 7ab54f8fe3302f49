// Package llm drives the AI collaborator over an OpenAI-compatible
// chat-completions API (OpenRouter). Three call shapes exist: per-
// transaction analysis (JSON-constrained), whole-address report
// generation, and report-grounded chat.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/domain/model"
)

// Analyst abstracts the AI collaborator for testing.
type Analyst interface {
	AnalyzeTransaction(ctx context.Context, detail model.TransactionDetail) (string, error)
	GenerateReport(ctx context.Context, address, corpus string) (string, error)
	ChatWithReport(ctx context.Context, address, report, corpus string, history []model.ChatMessage, question string) (string, error)
}

type Config struct {
	BaseURL       string
	APIKey        string
	AnalysisModel string
	ReportModel   string
	Referer       string
	Title         string
	Timeout       time.Duration
}

type Client struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		logger:     logger.With("component", "llm_client"),
	}
}

const analysisSystemPrompt = "You are a professional on-chain transaction analyst. " +
	"You must return JSON containing only an 'analysis' field, where analysis is Markdown " +
	"covering the transaction hash, operation type, behavior analysis and gas cost. " +
	"Avoid vague descriptions and never omit key data."

const analysisPromptTemplate = `You are a professional blockchain transaction analyst.
Your task is to analyze the JSON data of the single transaction below and summarize the
nature of the on-chain behavior and the flow of funds.

Transaction hash: %[1]s
Transaction time: %[2]s

Transaction data:
%[3]s

Follow these rules strictly:
1. Check the isUserInitiated field to determine whether the user acted deliberately; if so,
   weigh the net difference between the user's input and output assets.
2. Analyze tokenTransfers, internalTransactions and the main transaction together to identify
   the key contracts, protocols (Uniswap, Curve, bridges, ...) and the roles they play.
3. Quantify asset movements with token amounts and symbols; mark estimates as approximate.
4. Use your knowledge base to identify the real purpose of each protocol or service. Do not
   assume every operation is a pure crypto trade: a payment to a service provider is a
   purchase, not a swap or a bridge.

Output requirements:
- The answer must be a JSON object with a single field named "analysis".
- The "analysis" value must be Markdown structured exactly as:
* **Transaction %[1]s - time: %[2]s**
    * **Operation:** (one operation tag, e.g. "Token swap", "Approve", "Remove liquidity")
    * **Behavior:** (2-3 concrete sentences with the main token amounts, the transfer path,
      the role of the core protocol or address, and the user's final intent)
    * **Gas:** (gasUsed, gasPrice and txFee for this transaction; explain any missing value)
- Do not output generic filler or drop key data; use internalTransactions to support inference
  when needed.`

const reportSystemPrompt = "You are a professional on-chain analyst who explains complex " +
	"on-chain behavior in clear language. Stay rigorous but accessible, and follow the " +
	"requested Markdown structure exactly."

const reportPromptTemplate = `You are a senior on-chain detective and crypto analyst with ten
years of experience. Based on the per-transaction analysis summaries below, produce a deep
behavioral profile report for address %[1]s.

Core goal: see through the transaction data to who is behind this address, what they are
doing, and how skilled they are.

Transaction analysis summaries:
%[2]s

Output the report strictly in the following Markdown structure (no preamble):

### On-Chain Profile: %[1]s

#### 1. Identity and Rating
*   **Identity tag**: (e.g. veteran DeFi user / airdrop hunter / exchange whale / possibly a
    hacker or scammer - infer boldly)
*   **Skill tier**: (bronze / gold / diamond / elite, judged by protocol complexity and size)
*   **Plain-language persona**: (one vivid sentence describing this user)

#### 2. Funds and Strategy
*   **Flow of funds**:
    *   **Main sources**: (where does the money come from?)
    *   **Main destinations**: (where does it go?)
*   **Core strategy**: (explain the profit model in detail)

#### 3. Behavior Patterns
*   **Activity profile**: (frequency, timing, gas sensitivity)
*   **Protocol preferences**: (blue-chip protocols vs high-risk experiments)

#### 4. Risk Assessment
*   **Potential risks**: (dangerous approvals, interactions with suspicious addresses)
*   **Advice**: (what would you tell this user as their advisor?)

Requirements:
1. No play-by-play listings: explain why they act, not just what they did.
2. Identify protocols (Uniswap, Aave, Curve, Blur, Opensea, ...) and what they are for.
3. Cite amounts and tokens from the summaries as evidence when concluding.`

const chatPromptTemplate = `You are a professional on-chain analysis assistant.
You have already produced a profile report for address %s. The user will now ask questions
about that report and the underlying per-transaction analyses.

Report:
---
%s
---

Per-transaction analysis summaries:
---
%s
---

Answer rules:
1. Base every answer strictly on the report and summaries above.
2. Never invent information that is not in the context. If the answer is not there, say
   that the available information cannot answer the question.
3. Keep answers concise and direct.`

// AnalyzeTransaction asks the model to explain one cleaned transaction.
// A model response that is not the expected JSON shape degrades into a
// fallback analysis string rather than an error: a malformed answer
// still documents the attempt.
func (c *Client) AnalyzeTransaction(ctx context.Context, detail model.TransactionDetail) (string, error) {
	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal detail %s: %w", detail.TxHash, err)
	}

	txTime := detail.TxTime
	if txTime == "" {
		txTime = "unknown"
	}
	prompt := fmt.Sprintf(analysisPromptTemplate, detail.TxHash, txTime, string(data))

	content, err := c.complete(ctx, chatRequest{
		Model: c.cfg.AnalysisModel,
		Messages: []chatMessage{
			{Role: "system", Content: analysisSystemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    1,
	})
	if err != nil {
		return "", fmt.Errorf("analyze %s: %w", detail.TxHash, err)
	}

	var parsed struct {
		Analysis string `json:"analysis"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil || parsed.Analysis == "" {
		preview := content
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return "The model returned invalid JSON. Raw response: " + preview, nil
	}
	return parsed.Analysis, nil
}

// GenerateReport produces the whole-address profile report from the
// aggregated analysis corpus.
func (c *Client) GenerateReport(ctx context.Context, address, corpus string) (string, error) {
	if corpus == "" {
		return fmt.Sprintf("Address %s does not have enough data to generate a report.", address), nil
	}

	prompt := fmt.Sprintf(reportPromptTemplate, address, corpus)
	content, err := c.complete(ctx, chatRequest{
		Model: c.cfg.ReportModel,
		Messages: []chatMessage{
			{Role: "system", Content: reportSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("generate report for %s: %w", address, err)
	}
	return content, nil
}

// ChatWithReport answers a follow-up question grounded in the stored
// report, corpus and conversation history.
func (c *Client) ChatWithReport(ctx context.Context, address, report, corpus string, history []model.ChatMessage, question string) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{
		Role:    "system",
		Content: fmt.Sprintf(chatPromptTemplate, address, report, corpus),
	})
	for _, msg := range history {
		messages = append(messages, chatMessage{Role: msg.Role, Content: msg.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: question})

	content, err := c.complete(ctx, chatRequest{
		Model:       c.cfg.ReportModel,
		Messages:    messages,
		Temperature: 0.5,
	})
	if err != nil {
		return "", fmt.Errorf("chat for %s: %w", address, err)
	}
	return content, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, reqBody chatRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	c.logger.Debug("chat completion request", "model", reqBody.Model, "messages", len(reqBody.Messages))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}
