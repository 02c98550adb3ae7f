// Package config defines the command line of brokenlinks and turns it into crawl options.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/will-x86/brokenlinks/checker"
	"github.com/will-x86/brokenlinks/logger"
	"github.com/will-x86/brokenlinks/scope"
)

// ErrUnwritableOutput is returned when an output file cannot be created.
var ErrUnwritableOutput = errors.New("output path is not writable")

const description = `Crawl a website from a seed URL and report every link that does not answer 200 OK.

Only pages under the seed's origin are followed. Non-HTML resources are listed as files.`

type CLI struct {
	URL          string   `short:"u" placeholder:"URL" help:"Seed URL to crawl from. A trailing slash is dropped, so pass the form the server answers 200 for without one."`
	Once         bool     `short:"o" help:"Scan only the seed page for links. Its links are still status checked."`
	Exclude      []string `short:"x" sep:"," placeholder:"PATH,..." help:"Comma-separated substrings. Matching URLs are never queued."`
	OutputFiles  string   `short:"f" default:"found_files.txt" placeholder:"FILE" help:"Where to list discovered non-HTML files."`
	OutputBroken string   `short:"b" default:"broken_links.txt" placeholder:"FILE" help:"Where to list broken URLs."`
	ReportFile   string   `short:"r" placeholder:"FILE" help:"Write the report to a file instead of standard output."`

	Config kong.ConfigFlag `placeholder:"FILE" help:"YAML file supplying defaults for any flag."`

	Workers      int           `default:"4" help:"Worker count for the async and adaptive runners."`
	Runner       string        `default:"serial" enum:"serial,async,adaptive" help:"Scheduler: ${enum}."`
	Queue        string        `default:"memory" enum:"memory,sqlite,file" help:"Frontier storage: ${enum}."`
	QueuePath    string        `default:".brokenlinks" placeholder:"DIR" help:"Directory for the sqlite and file queues. Emptied on start."`
	Dedupe       bool          `default:"true" negatable:"" help:"Refuse links that are already waiting in the frontier."`
	Timeout      time.Duration `default:"15s" help:"Per-request timeout."`
	Retries      int           `default:"2" help:"Retries for connection-level failures."`
	Rate         int           `default:"0" help:"Requests per second, 0 for unlimited."`
	Client       string        `default:"net" enum:"net,fasthttp" help:"HTTP client: ${enum}."`
	HeadFallback bool          `help:"Classify with GET when a server refuses HEAD with 405."`
	UserAgent    string        `default:"brokenlinks/1.0" help:"User-Agent header."`
	Format       string        `default:"text" enum:"text,table,csv,json" help:"Report format: ${enum}."`
	LogLevel     string        `default:"info" enum:"debug,info,warn,error" help:"Log level: ${enum}."`
	LogFormat    string        `default:"console" enum:"console,json,slog,std" help:"Log output: ${enum}."`
	LogFile      string        `placeholder:"FILE" help:"Append logs to FILE instead of standard error."`
}

// New builds the parser for cli. Extra options are appended, so tests can swap Exit and
// the writers.
func New(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("brokenlinks"),
		kong.Description(description),
		kong.UsageOnError(),
		kong.Configuration(YAML, "~/.config/brokenlinks.yaml"),
	}
	return kong.New(cli, append(base, opts...)...)
}

// Validate runs once after parsing, before anything is crawled.
func (c *CLI) Validate() error {
	if _, _, err := scope.ParseSeed(c.URL); err != nil {
		return fmt.Errorf("--url: %w", err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", c.Workers)
	}
	if c.Retries < 0 {
		return fmt.Errorf("--retries must not be negative, got %d", c.Retries)
	}
	if c.Rate < 0 {
		return fmt.Errorf("--rate must not be negative, got %d", c.Rate)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Logger builds the logger selected by --log-format and --log-level. It writes to w
// unless --log-file is set.
func (c *CLI) Logger(w io.Writer) (logger.Logger, error) {
	if c.LogFile != "" {
		return logger.NewFile(c.LogFormat, c.LogLevel, c.LogFile)
	}
	return logger.New(c.LogFormat, c.LogLevel, w)
}

// Options converts the parsed command line into crawl options.
func (c *CLI) Options(log logger.Logger) checker.Options {
	return checker.Options{
		URL:             c.URL,
		Once:            c.Once,
		Exclude:         c.Exclude,
		Runner:          c.Runner,
		Workers:         c.Workers,
		Queue:           c.Queue,
		QueuePath:       c.QueuePath,
		AllowDuplicates: !c.Dedupe,
		Client:          c.Client,
		Timeout:         c.Timeout,
		Retries:         c.Retries,
		Rate:            c.Rate,
		HeadFallback:    c.HeadFallback,
		UserAgent:       c.UserAgent,
		Logger:          log,
	}
}

// Outputs are the destinations of a run, created before crawling so a bad path fails fast.
type Outputs struct {
	Files  io.Writer
	Broken io.Writer
	Report io.Writer

	closers []io.Closer
}

// Open creates the output files. Report falls back to stdout when --report-file is unset.
func (c *CLI) Open(stdout io.Writer) (*Outputs, error) {
	out := &Outputs{Report: stdout}

	create := func(path string) (io.Writer, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnwritableOutput, err)
		}
		out.closers = append(out.closers, f)
		return f, nil
	}

	var err error
	if out.Files, err = create(c.OutputFiles); err != nil {
		out.Close()
		return nil, err
	}
	if out.Broken, err = create(c.OutputBroken); err != nil {
		out.Close()
		return nil, err
	}
	if c.ReportFile != "" {
		if out.Report, err = create(c.ReportFile); err != nil {
			out.Close()
			return nil, err
		}
	}
	return out, nil
}

func (o *Outputs) Close() error {
	var errs []error
	for _, c := range o.closers {
		errs = append(errs, c.Close())
	}
	o.closers = nil
	return errors.Join(errs...)
}
