// Command sifconv converts SIF documents between protocol versions.
//
// Usage:
//
//	sifconv convert --from 1.5r1 --to 2.5 student.xml
//	sifconv convert --to 2.5 --workers 4 a.xml b.xml c.xml
//	sifconv get --version 1.5r1 student.xml "GradYear[@Type='Projected']"
//	sifconv wrap --to 1.5r1 --source SIS --action Add student.xml
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	sif "github.com/smnsjas/go-sifcore"
	"github.com/smnsjas/go-sifcore/messages"
	"github.com/smnsjas/go-sifcore/version"
)

// CLI defines the command-line interface.
type CLI struct {
	Convert ConvertCmd `cmd:"" help:"Convert documents to another SIF version."`
	Get     GetCmd     `cmd:"" help:"Print the value a path selects in a document."`
	Wrap    WrapCmd    `cmd:"" help:"Wrap an object in a SIF_Event message."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"warn" enum:"debug,info,warn,error"`
	Strict    bool   `help:"Fail on elements the schema does not declare."`
	Namespace bool   `help:"Declare the SIF namespace on output documents."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("sifconv %s (SIF %s to %s)\n", sif.Version, version.Earliest(), version.Latest())
	return nil
}

// ConvertCmd rewrites documents in another version.
type ConvertCmd struct {
	From    string   `help:"Source version; read from the document when empty." placeholder:"VERSION"`
	To      string   `required:"" help:"Target version." placeholder:"VERSION"`
	Workers int      `help:"Documents converted at once; defaults to GOMAXPROCS."`
	Files   []string `arg:"" help:"Documents to convert; '-' or none reads stdin." optional:""`
}

func (c *ConvertCmd) Run(ctx context.Context, cli *CLI) error {
	from, to, err := versions(c.From, c.To)
	if err != nil {
		return err
	}
	var opts []sif.Option
	if c.Workers > 0 {
		opts = append(opts, sif.WithWorkers(c.Workers))
	}
	codec, err := cli.codec(opts...)
	if err != nil {
		return err
	}
	docs, err := readAll(c.Files)
	if err != nil {
		return err
	}
	out, err := codec.ConvertAll(ctx, docs, from, to)
	if err != nil {
		return err
	}
	for _, doc := range out {
		if _, err := fmt.Fprintf(os.Stdout, "%s\n", doc); err != nil {
			return err
		}
	}
	return nil
}

// GetCmd evaluates a path against a document.
type GetCmd struct {
	Version string `help:"Version the path is written for; defaults to the document's." placeholder:"VERSION"`
	From    string `help:"Document version; read from the document when empty." placeholder:"VERSION"`
	File    string `arg:"" type:"existingfile" help:"Document to read."`
	Path    string `arg:"" help:"Path expression."`
}

func (c *GetCmd) Run(cli *CLI) error {
	codec, err := cli.codec()
	if err != nil {
		return err
	}
	from, err := optionalVersion(c.From)
	if err != nil {
		return err
	}
	docs, err := readAll([]string{c.File})
	if err != nil {
		return err
	}
	el, from, err := codec.Unmarshal(docs[0], from)
	if err != nil {
		return err
	}
	view := from
	if c.Version != "" {
		if view, err = version.Parse(c.Version); err != nil {
			return err
		}
	}
	ps, err := codec.Query(el, view).Select(c.Path)
	if err != nil {
		return err
	}
	for _, p := range ps {
		if s, ok := p.Text(); ok {
			fmt.Println(s)
		}
	}
	return nil
}

// WrapCmd wraps an object document in an event envelope.
type WrapCmd struct {
	From   string `help:"Document version; read from the document when empty." placeholder:"VERSION"`
	To     string `required:"" help:"Message version." placeholder:"VERSION"`
	Source string `required:"" help:"SIF_SourceId of the sending agent."`
	Action string `help:"Event action." default:"Add" enum:"Add,Change,Delete"`
	File   string `arg:"" type:"existingfile" help:"Object document."`
}

func (c *WrapCmd) Run(cli *CLI) error {
	from, to, err := versions(c.From, c.To)
	if err != nil {
		return err
	}
	codec, err := cli.codec()
	if err != nil {
		return err
	}
	docs, err := readAll([]string{c.File})
	if err != nil {
		return err
	}
	el, _, err := codec.Unmarshal(docs[0], from)
	if err != nil {
		return err
	}
	action, err := messages.ParseAction(c.Action)
	if err != nil {
		return err
	}
	out, err := codec.MarshalEvent(messages.NewEvent(messages.NewHeader(c.Source), action, el), to)
	if err != nil {
		return err
	}
	_, err = fmt.Printf("%s\n", out)
	return err
}

func (cli *CLI) codec(opts ...sif.Option) (*sif.Codec, error) {
	opts = append(opts,
		sif.WithLogger(slog.Default()),
		sif.WithStrict(cli.Strict),
		sif.WithNamespace(cli.Namespace))
	return sif.NewCodec(opts...)
}

func versions(from, to string) (version.Version, version.Version, error) {
	f, err := optionalVersion(from)
	if err != nil {
		return f, version.Version{}, err
	}
	t, err := version.Parse(to)
	return f, t, err
}

func optionalVersion(s string) (version.Version, error) {
	if s == "" {
		return version.Version{}, nil
	}
	return version.Parse(s)
}

func readAll(files []string) ([][]byte, error) {
	if len(files) == 0 {
		files = []string{"-"}
	}
	docs := make([][]byte, 0, len(files))
	for _, name := range files {
		var (
			data []byte
			err  error
		)
		if name == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(name)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		docs = append(docs, data)
	}
	return docs, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	}
	return slog.LevelWarn
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("sifconv"),
		kong.Description("Convert SIF documents between protocol versions."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cli.LogLevel),
	})))

	err := kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}
