package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"deckgen-web/internal/artifact"
	"deckgen-web/internal/config"
	"deckgen-web/internal/form"
	"deckgen-web/internal/generator"
	"deckgen-web/internal/model"
	"deckgen-web/pkg/logger"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type generateOptions struct {
	ConfigPath   string
	Text         string
	TextFile     string
	TemplateFile string
	Out          string
	Endpoint     string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a presentation from the terminal",
	Long: `Generate sends source text and an optional .pptx template to the generation
backend and writes the returned presentation to --out.

Source text comes from --text, --text-file or, when neither is given, from
stdin. On a terminal you are prompted for it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := generateOptionsFromFlags(cmd)
		if err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
		return runGenerate(cmd.Context(), opts, sourceReader{
			in:          cmd.InOrStdin(),
			interactive: term.IsTerminal(int(os.Stdin.Fd())),
		}, cmd.OutOrStdout())
	},
}

func init() {
	generateCmd.Flags().StringP("config", "c", "", "config file path (defaults and DECKGEN_* env when empty)")
	generateCmd.Flags().StringP("text", "t", "", "source text")
	generateCmd.Flags().StringP("text-file", "f", "", "plain-text source file")
	generateCmd.Flags().StringP("template", "p", "", "optional .pptx template")
	generateCmd.Flags().StringP("out", "o", "presentation.pptx", "output path")
	generateCmd.Flags().StringP("endpoint", "e", "", "generation backend URL (overrides config)")
}

func generateOptionsFromFlags(cmd *cobra.Command) (generateOptions, error) {
	var opts generateOptions
	opts.ConfigPath, _ = cmd.Flags().GetString("config")
	opts.Text, _ = cmd.Flags().GetString("text")
	opts.TextFile, _ = cmd.Flags().GetString("text-file")
	opts.TemplateFile, _ = cmd.Flags().GetString("template")
	opts.Out, _ = cmd.Flags().GetString("out")
	opts.Endpoint, _ = cmd.Flags().GetString("endpoint")

	if opts.Text != "" && opts.TextFile != "" {
		return opts, errors.New("cannot use both --text and --text-file")
	}
	if opts.Out == "" {
		return opts, errors.New("--out must not be empty")
	}
	return opts, nil
}

// sourceReader supplies source text when no flag provides it.
type sourceReader struct {
	in          io.Reader
	interactive bool
}

func (r sourceReader) read() (string, error) {
	if r.interactive {
		var content string
		prompt := &survey.Multiline{
			Message: "Presentation content:",
			Help:    "Type or paste the text the slides should be built from.",
		}
		if err := survey.AskOne(prompt, &content, survey.WithValidator(survey.Required)); err != nil {
			return "", fmt.Errorf("failed to read source text: %w", err)
		}
		return content, nil
	}
	if r.in == nil {
		return "", nil
	}
	data, err := io.ReadAll(r.in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func runGenerate(ctx context.Context, opts generateOptions, src sourceReader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	endpoint := cfg.Generator.Endpoint
	if opts.Endpoint != "" {
		endpoint = opts.Endpoint
	}

	store := artifact.NewStore(cfg.Artifact.MaxTotalBytes)
	controller := form.NewController(form.Options{
		Generator: generator.NewClient(endpoint, cfg.Generator.Timeout,
			generator.WithMaxResponseBytes(cfg.Generator.MaxResponseBytes)),
		Artifacts:    store,
		RejectPolicy: form.RejectWithError,
		FileName:     cfg.Artifact.FileName,
		Label:        "cli",
	})
	defer controller.Close()

	if err := fillSource(controller, opts, src); err != nil {
		return err
	}
	if opts.TemplateFile != "" {
		f, err := readFileRef(opts.TemplateFile)
		if err != nil {
			return err
		}
		if err := controller.SelectTemplateFile(f); err != nil {
			return err
		}
	}

	handle, err := controller.Submit(ctx)
	if err != nil {
		var generation *form.GenerationError
		if errors.As(err, &generation) {
			return fmt.Errorf("%s: %w", form.MsgGenerationFailed, generation.Err)
		}
		return err
	}

	a, err := store.Open(handle.ID)
	if err != nil {
		return fmt.Errorf("failed to open generated presentation: %w", err)
	}
	if err := os.WriteFile(opts.Out, a.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.Out, err)
	}

	fmt.Fprintf(out, "Saved %s (%d bytes)\n", opts.Out, a.Size)
	return nil
}

func fillSource(controller *form.Controller, opts generateOptions, src sourceReader) error {
	switch {
	case opts.TextFile != "":
		f, err := readFileRef(opts.TextFile)
		if err != nil {
			return err
		}
		return controller.SelectSourceFile(f)
	case opts.Text != "":
		controller.SetInlineText(opts.Text)
		return nil
	default:
		text, err := src.read()
		if err != nil {
			return err
		}
		controller.SetInlineText(strings.TrimRight(text, "\n"))
		return nil
	}
}

func readFileRef(path string) (*model.FileRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &model.FileRef{
		Name: filepath.Base(path),
		Data: data,
	}, nil
}
