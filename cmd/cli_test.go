package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/KaramelBytes/salesloom-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/salesloom-cli/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const cliSalesCSV = "Order ID,Date,Status,Category,Amount\n" +
	"1,04-01-22,Shipped,Set,100000\n" +
	"2,04-02-22,Shipped,Kurta,50000\n"

const totalPlan = "```json\n{\"dataset\": \"amazon_sale_report\", \"aggregates\": [{\"func\": \"sum\", \"column\": \"Amount\"}]}\n```"

const chartPlan = "```json\n{\"dataset\": \"amazon_sale_report\", \"group_by\": [\"Category\"], " +
	"\"aggregates\": [{\"func\": \"sum\", \"column\": \"Amount\", \"as\": \"revenue\"}], " +
	"\"sort\": [{\"column\": \"revenue\", \"desc\": true}], \"chart\": {\"type\": \"bar\", \"title\": \"Revenue by category\"}}\n```"

// resetFlags restores every flag to its default so state does not leak
// between invocations of the shared root command.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCmd executes the root command with args and returns stdout and stderr.
func runCmd(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

// setupEnv isolates HOME, writes the sales fixture and points the hosted
// client at baseURL.
func setupEnv(t *testing.T, baseURL string) string {
	t.Helper()
	home := t.TempDir()
	data := filepath.Join(home, "Data")
	if err := os.MkdirAll(data, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(data, "Amazon Sale Report.csv"), []byte(cliSalesCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("SALESLOOM_DATA_DIR", data)
	t.Setenv("SALESLOOM_API_KEY", "test-key-123456")
	t.Setenv("SALESLOOM_BASE_URL", baseURL)
	t.Setenv("SALESLOOM_PROVIDER", "groq")
	return home
}

type ipv4Server struct {
	URL string
	srv *http.Server
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	s := &ipv4Server{URL: "http://" + ln.Addr().String(), srv: &http.Server{Handler: handler}}
	go func() { _ = s.srv.Serve(ln) }()
	t.Cleanup(func() { _ = s.srv.Close() })
	return s
}

// fakeModel answers plan prompts with planReply and answer prompts with a
// sentence quoting the analysis result.
func fakeModel(t *testing.T, planReply string) *ipv4Server {
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key-123456" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"invalid api key"}}`)
			return
		}
		var req ai.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		prompt := req.Messages[len(req.Messages)-1].Content
		content := planReply
		if i := strings.Index(prompt, "Analysis Result: "); i >= 0 {
			rest := prompt[i+len("Analysis Result: "):]
			content = "The answer is " + strings.TrimSpace(strings.SplitN(rest, "\n\n", 2)[0]) + "."
		}
		resp := ai.GenerateResponse{
			ID:      "cmpl-1",
			Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: content}}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestCLI_AskTotalRevenue(t *testing.T) {
	srv := fakeModel(t, totalPlan)
	setupEnv(t, srv.URL)

	out, errOut, err := runCmd(t, "", "ask", "What is the total revenue?")
	if err != nil {
		t.Fatalf("ask failed: %v (stderr %s)", err, errOut)
	}
	if !strings.Contains(out, "The answer is 150000.") {
		t.Fatalf("unexpected answer: %q", out)
	}
}

func TestCLI_AskJSONAndChartOut(t *testing.T) {
	srv := fakeModel(t, chartPlan)
	home := setupEnv(t, srv.URL)
	chartPath := filepath.Join(home, "out", "chart.json")

	out, errOut, err := runCmd(t, "", "ask", "Plot revenue by category", "--json", "--chart-out", chartPath)
	if err != nil {
		t.Fatalf("ask failed: %v (stderr %s)", err, errOut)
	}
	var turn struct {
		Question string `json:"question"`
		Result   string `json:"result"`
		Answer   string `json:"answer"`
		Chart    *struct {
			Type   string    `json:"type"`
			Labels []string  `json:"labels"`
			Values []float64 `json:"values"`
		} `json:"chart"`
	}
	if err := json.Unmarshal([]byte(out), &turn); err != nil {
		t.Fatalf("stdout is not a JSON turn: %v\n%s", err, out)
	}
	if turn.Question != "Plot revenue by category" || turn.Chart == nil || turn.Chart.Type != "bar" {
		t.Fatalf("unexpected turn: %+v", turn)
	}
	if strings.Join(turn.Chart.Labels, ",") != "Set,Kurta" {
		t.Fatalf("labels = %v", turn.Chart.Labels)
	}
	data, err := os.ReadFile(chartPath)
	if err != nil {
		t.Fatalf("chart file not written: %v", err)
	}
	if !strings.Contains(string(data), `"Revenue by category"`) {
		t.Fatalf("chart file missing title: %s", data)
	}
}

func TestCLI_AskShowPlanRendersChart(t *testing.T) {
	srv := fakeModel(t, chartPlan)
	setupEnv(t, srv.URL)

	out, _, err := runCmd(t, "", "ask", "--show-plan", "Plot revenue by category")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	for _, want := range []string{"Plan:", `"group_by"`, "Revenue by category", "Kurta"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCLI_AskMissingColumnReportsError(t *testing.T) {
	srv := fakeModel(t, "```json\n{\"dataset\": \"amazon_sale_report\", \"group_by\": [\"Region\"]}\n```")
	setupEnv(t, srv.URL)

	out, _, err := runCmd(t, "", "ask", "Revenue by region")
	if err != nil {
		t.Fatalf("ask should not fail on analysis errors: %v", err)
	}
	if !strings.Contains(out, "I encountered an error while analyzing the data:") || !strings.Contains(out, "Region") {
		t.Fatalf("expected error answer, got %q", out)
	}
}

func TestCLI_AskAuthFailureHint(t *testing.T) {
	srv := fakeModel(t, totalPlan)
	setupEnv(t, srv.URL)
	t.Setenv("SALESLOOM_API_KEY", "wrong-key-000000")

	out, errOut, err := runCmd(t, "", "ask", "What is the total revenue?")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if !strings.Contains(out, "An error occurred:") {
		t.Fatalf("expected generic error answer, got %q", out)
	}
	if !strings.Contains(errOut, "authentication failed") {
		t.Fatalf("expected auth hint on stderr, got %q", errOut)
	}
}

func TestCLI_AskWithoutKeyIsUnavailable(t *testing.T) {
	srv := fakeModel(t, totalPlan)
	setupEnv(t, srv.URL)
	t.Setenv("SALESLOOM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	out, errOut, err := runCmd(t, "", "ask", "What is the total revenue?")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if !strings.Contains(errOut, "no API key for provider") {
		t.Fatalf("expected key warning, got %q", errOut)
	}
	if !strings.Contains(out, "LLM not initialized. Check API Key.") {
		t.Fatalf("unexpected answer: %q", out)
	}
}

func TestCLI_Datasets(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1")

	out, _, err := runCmd(t, "", "datasets")
	if err != nil {
		t.Fatalf("datasets failed: %v", err)
	}
	if !strings.Contains(out, "amazon_sale_report") || !strings.Contains(out, "2 rows") {
		t.Fatalf("unexpected listing: %q", out)
	}

	out, _, err = runCmd(t, "", "datasets", "--summary")
	if err != nil {
		t.Fatalf("datasets --summary failed: %v", err)
	}
	if !strings.Contains(out, "Amount") {
		t.Fatalf("summary should list columns: %q", out)
	}
}

func TestCLI_ChatSession(t *testing.T) {
	srv := fakeModel(t, totalPlan)
	setupEnv(t, srv.URL)

	in := "/datasets\nWhat is the total revenue?\n/history\n/bogus\n/exit\nnever read\n"
	out, errOut, err := runCmd(t, in, "chat")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	for _, want := range []string{"amazon_sale_report", "The answer is 150000.", "You: What is the total revenue?", "Assistant: The answer is 150000."} {
		if !strings.Contains(out, want) {
			t.Fatalf("chat output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(errOut, "unknown command /bogus") {
		t.Fatalf("expected unknown command warning, got %q", errOut)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:1")

	if _, _, err := runCmd(t, "", "config", "set", "model", "llama-3.3-70b-versatile"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, _, err := runCmd(t, "", "config", "set", "max_result_rows", "25"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, _, err := runCmd(t, "", "config", "set", "provider", "bedrock"); err == nil {
		t.Fatal("expected invalid provider error")
	}
	if _, _, err := runCmd(t, "", "config", "set", "nope", "1"); err == nil {
		t.Fatal("expected unknown key error")
	}

	out, _, err := runCmd(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, want := range []string{"model: llama-3.3-70b-versatile", "max_result_rows: 25", "api_key: tes****456"} {
		if !strings.Contains(out, want) {
			t.Fatalf("config show missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "test-key-123456") {
		t.Fatal("api key must be masked")
	}
}

func TestCLI_ModelsShowAndSync(t *testing.T) {
	home := setupEnv(t, "http://127.0.0.1:1")

	out, _, err := runCmd(t, "", "models", "show")
	if err != nil {
		t.Fatalf("models show: %v", err)
	}
	if !strings.Contains(out, "* ") || !strings.Contains(out, "openai/gpt-oss-20b") {
		t.Fatalf("expected configured model marked:\n%s", out)
	}

	path := filepath.Join(home, "models.json")
	if err := os.WriteFile(path, []byte(`{"custom/model": {"ContextTokens": 4096}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err = runCmd(t, "", "models", "sync", "--file", path)
	if err != nil {
		t.Fatalf("models sync: %v", err)
	}
	if !strings.Contains(out, "custom/model") {
		t.Fatalf("merged model missing:\n%s", out)
	}
	if _, _, err := runCmd(t, "", "models", "sync"); err == nil {
		t.Fatal("expected --file required error")
	}
}

func TestProviderHint(t *testing.T) {
	c := &cfgpkg.Global{Provider: ai.ProviderGroq, Model: "openai/gpt-oss-20b"}
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("plain"), ""},
		{&ai.AuthError{APIError: &ai.APIError{StatusCode: 401}}, "GROQ_API_KEY"},
		{&ai.ModelNotFoundError{APIError: &ai.APIError{StatusCode: 404}}, "salesloom models"},
		{&ai.UnreachableError{Host: "http://127.0.0.1:11434"}, "Ollama not reachable"},
	}
	for _, tc := range cases {
		got := providerHint(c, tc.err)
		if tc.want == "" && got != "" || !strings.Contains(got, tc.want) {
			t.Errorf("providerHint(%v) = %q, want containing %q", tc.err, got, tc.want)
		}
	}
}

func TestPlanLimitsFromConfig(t *testing.T) {
	lim := planLimits(&cfgpkg.Global{ExecTimeoutSec: 5, MaxResultRows: 7})
	if lim.Timeout.Seconds() != 5 || lim.MaxRows != 7 || lim.MaxGroups != 10000 {
		t.Fatalf("unexpected limits: %+v", lim)
	}
}
