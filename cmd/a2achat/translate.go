package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/a2achat/pkg/chat"
	"github.com/kadirpekel/a2achat/pkg/server"
	"github.com/kadirpekel/a2achat/pkg/translator"
)

// TranslateCmd translates one document offline.
type TranslateCmd struct {
	File   string `arg:"" help:"Task or message JSON file, or - for stdin." placeholder:"PATH"`
	Format string `short:"f" help:"Output format: json, yaml, text." default:"json" enum:"json,yaml,text"`
}

func (c *TranslateCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := cli.loadConfig(ctx)
	if err != nil {
		return err
	}

	data, err := readInput(c.File)
	if err != nil {
		return err
	}

	tr := translator.New(cfg.TranslatorOptions(slog.Default(), nil))
	msgs, err := server.DecodeAndTranslate(tr, data)
	if err != nil {
		return err
	}
	return writeMessages(stdout, c.Format, msgs)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func writeMessages(w io.Writer, format string, msgs []chat.Message) error {
	switch format {
	case "text":
		for _, msg := range msgs {
			fmt.Fprintln(w, renderText(msg))
		}
		return nil
	case "yaml":
		// Round-trip through JSON so YAML keys match the JSON field names.
		raw, err := json.Marshal(msgs)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode messages as YAML: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if msgs == nil {
			msgs = []chat.Message{}
		}
		return enc.Encode(msgs)
	}
}

// renderText summarizes a message on one line for terminal output.
func renderText(msg chat.Message) string {
	switch msg.Kind {
	case chat.KindText:
		if msg.Text != nil {
			return msg.Text.Text
		}
	case chat.KindReasoningSteps, chat.KindChainOfThought:
		steps := msg.Steps()
		parts := make([]string, 0, len(steps))
		for _, s := range steps {
			label := firstSet(s.Title, s.ToolName, s.Description)
			parts = append(parts, fmt.Sprintf("%s (%s)", label, s.Status))
		}
		return fmt.Sprintf("[%s] %s", msg.Kind, strings.Join(parts, ", "))
	case chat.KindImage:
		if msg.Image != nil {
			return fmt.Sprintf("[image] %s", firstSet(msg.Image.Title, msg.Image.AltText, msg.Image.MimeType))
		}
	case chat.KindUserDefined:
		if u := msg.UserDefined; u != nil {
			return fmt.Sprintf("[%s] %s", u.Type, userDefinedSummary(u))
		}
	}
	return fmt.Sprintf("[%s]", msg.Kind)
}

func userDefinedSummary(u *chat.UserDefinedPayload) string {
	switch {
	case u.Status != nil:
		return u.Status.Text
	case u.Attachment != nil:
		return u.Attachment.Name
	case u.Chart != nil:
		return u.Chart.Name
	case u.Table != nil:
		return fmt.Sprintf("%d rows, columns: %s", len(u.Table.Rows), strings.Join(u.Table.Columns, ", "))
	case u.Error != nil:
		return strings.TrimSpace(u.Error.Title + ": " + u.Error.Message)
	case u.Form != nil:
		return firstSet(u.Form.Title, u.Form.ID)
	case u.Data != nil:
		raw, _ := json.Marshal(u.Data)
		return string(raw)
	}
	return ""
}
