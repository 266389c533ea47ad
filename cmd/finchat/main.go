package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spektr-org/finchat/engine"
	"github.com/spektr-org/finchat/internal/app"
	"github.com/spektr-org/finchat/internal/chat"
	"github.com/spektr-org/finchat/internal/common"
	"github.com/spektr-org/finchat/internal/server"
)

// ============================================================================
// FINCHAT CLI — Ask the financial dataset a question, or serve the chat
// ============================================================================

func main() {
	// ── Flags ─────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "Path to finchat.toml")
	filePath := flag.String("file", "", "Path to the CSV dataset (overrides dataset.path)")
	queryStr := flag.String("query", "", "Question to answer")
	format := flag.String("format", "text", "Output format: json, pretty, text, csv, html")
	outFile := flag.String("out", "", "Write output to file instead of stdout")
	serve := flag.Bool("serve", false, "Run the HTTP and WebSocket server")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `finchat — questions in, financial analysis out

Usage:
  finchat --query "como nos fue en originacion pyme los ultimos 3 meses"
  finchat --file data.csv --query "rate all in cohort 2024" --format csv --out results.csv
  finchat --config finchat.toml --serve

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  GEMINI_API_KEY    Enables answers to non-financial questions
  FINCHAT_*         Override config values (see finchat.toml)

Formats:
  text      The narrative reply (default)
  json      Full JSON output
  pretty    Pretty-printed JSON
  csv       Chart and table data as CSV (ready for Sheets/Excel)
  html      The narrative rendered as HTML
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", common.ServiceName, common.GetFullVersion())
		os.Exit(0)
	}

	if !*serve && *queryStr == "" {
		fmt.Fprintln(os.Stderr, "Error: either --serve or --query is required")
		flag.Usage()
		os.Exit(1)
	}

	// ── Configuration ─────────────────────────────────────────────────────
	cfg, err := common.LoadFromFiles(*configPath)
	if err != nil {
		fatalf("%v", err)
	}
	if *filePath != "" {
		cfg.Dataset.Path = *filePath
	}
	if !*serve {
		// keep stdout clean for the answer
		var outputs []string
		for _, o := range cfg.Logging.Output {
			if o == "file" {
				outputs = append(outputs, o)
			}
		}
		cfg.Logging.Output = outputs
	}
	if err := cfg.Validate(); err != nil {
		fatalf("Invalid configuration: %v", err)
	}
	logger := common.InitLogger(cfg)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fatalf("Startup failed: %v", err)
	}
	defer a.Close()

	// ── Serve mode ────────────────────────────────────────────────────────
	if *serve {
		runServer(a)
		return
	}

	// ── Output writer ─────────────────────────────────────────────────────
	var writer io.Writer = os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			fatalf("Failed to create output file: %v", err)
		}
		defer f.Close()
		writer = f
	}

	// ── Query mode ────────────────────────────────────────────────────────
	resp, err := a.Chat.Respond(ctx, chat.Request{Message: *queryStr})
	if err != nil {
		fatalf("%v", err)
	}

	switch *format {
	case "text":
		fmt.Fprintln(writer, strings.TrimRight(resp.Reply, "\n"))
	case "html":
		out, err := server.RenderMarkdown(server.NewMarkdown(), resp.Reply)
		if err != nil {
			fatalf("Failed to render reply: %v", err)
		}
		fmt.Fprint(writer, out)
	case "csv":
		writeCSV(writer, resp)
	default:
		writeJSON(writer, cliOutput{
			Query:  *queryStr,
			Kind:   resp.Kind,
			Reply:  resp.Reply,
			Model:  resp.Model,
			Result: resp.Result,
		}, *format)
	}
	if *outFile != "" {
		fmt.Fprintf(os.Stderr, "Output written to %s\n", *outFile)
	}
}

func runServer(a *app.App) {
	srv := server.New(a.Chat, a.Config, a.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			fatalf("%v", err)
		}
	case sig := <-sigCh:
		a.Logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}

// ============================================================================
// OUTPUT TYPES
// ============================================================================

type cliOutput struct {
	Query  string         `json:"query"`
	Kind   string         `json:"kind"`
	Reply  string         `json:"reply"`
	Model  string         `json:"model,omitempty"`
	Result *engine.Result `json:"result,omitempty"`
}

// ============================================================================
// CSV OUTPUT — chart series first, then every table, blank line between
// ============================================================================

func writeCSV(w io.Writer, resp *chat.Response) {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	res := resp.Result
	wrote := false
	if res != nil && res.Chart != nil {
		wrote = writeChartCSV(cw, res.Chart)
	}
	if res != nil {
		for _, table := range res.Tables {
			if table == nil || len(table.Columns) == 0 {
				continue
			}
			if wrote {
				cw.Write(nil)
			}
			writeTableCSV(cw, table)
			wrote = true
		}
	}
	if wrote {
		return
	}

	// Fallback: text reply as single-row CSV
	reply := resp.Reply
	if reply == "" {
		reply = "No data"
	}
	cw.Write([]string{"Summary"})
	cw.Write([]string{reply})
}

func writeChartCSV(cw *csv.Writer, chart *engine.ChartConfig) bool {
	if len(chart.Series) == 0 {
		return false
	}

	xLabel := chart.XAxis
	yLabel := chart.YAxis
	if xLabel == "" {
		xLabel = "Label"
	}
	if yLabel == "" {
		yLabel = "Value"
	}

	// Single series → two columns
	if len(chart.Series) == 1 {
		cw.Write([]string{xLabel, yLabel})
		for _, d := range chart.Series[0].Data {
			cw.Write([]string{d.Label, fmtNum(d.Value)})
		}
		return true
	}

	// Series may cover different periods; rows follow first appearance
	headers := []string{xLabel}
	var labels []string
	values := make([]map[string]float64, len(chart.Series))
	seen := make(map[string]bool)
	for i, s := range chart.Series {
		headers = append(headers, s.Name)
		values[i] = make(map[string]float64, len(s.Data))
		for _, d := range s.Data {
			values[i][d.Label] = d.Value
			if !seen[d.Label] {
				seen[d.Label] = true
				labels = append(labels, d.Label)
			}
		}
	}
	cw.Write(headers)
	for _, label := range labels {
		row := []string{label}
		for i := range chart.Series {
			if v, ok := values[i][label]; ok {
				row = append(row, fmtNum(v))
			} else {
				row = append(row, "")
			}
		}
		cw.Write(row)
	}
	return true
}

func writeTableCSV(cw *csv.Writer, table *engine.TableData) {
	if table.Title != "" {
		cw.Write([]string{table.Title})
	}
	headers := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		headers[i] = c.Label
	}
	cw.Write(headers)
	for _, row := range table.Rows {
		cw.Write(row)
	}
	if table.Summary != nil {
		row := make([]string, len(table.Columns))
		row[0] = table.Summary.Label
		for i, c := range table.Columns {
			if v, ok := table.Summary.Values[c.Key]; ok {
				row[i] = v
			}
		}
		cw.Write(row)
	}
}

// ============================================================================
// JSON OUTPUT
// ============================================================================

func writeJSON(w io.Writer, v interface{}, format string) {
	var out []byte
	var err error

	if format == "pretty" {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}

	if err != nil {
		fatalf("Failed to marshal output: %v", err)
	}
	fmt.Fprintln(w, string(out))
}

// ============================================================================
// HELPERS
// ============================================================================

func fmtNum(v float64) string {
	// Whole numbers → no decimals, fractional → 4 decimals (rates are fractions)
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.4f", v)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
