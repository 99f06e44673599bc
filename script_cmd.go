package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/mitchellh/go-homedir"
	"github.com/padworld/padtour/tour"
	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	scriptRaw  bool
	scriptHTML string
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Print the tour narration",
	Long: paragraph(fmt.Sprintf("\nPrint the %s as a document, one section per step. The markdown source can be printed as is or exported to HTML.", keyword("tour narration"))),
	Example: paragraph("padtour script\npadtour script --raw > tour.md\npadtour script --html tour.html"),
	Args:    cobra.NoArgs,
	RunE:    runScript,
}

func init() {
	scriptCmd.Flags().BoolVar(&scriptRaw, "raw", false, "print the markdown source")
	scriptCmd.Flags().StringVar(&scriptHTML, "html", "", "write the script as HTML to this file")
	scriptCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
}

// scriptMarkdown renders the steps as a markdown document.
func scriptMarkdown(steps []tour.Step) string {
	var b strings.Builder
	b.WriteString("# PadWorld Tour\n")
	for i, s := range steps {
		fmt.Fprintf(&b, "\n## %d. %s\n\n", i+1, s.Label)
		fmt.Fprintf(&b, "*Section* `%s`\n\n", s.SectionID)
		b.WriteString(strings.TrimSpace(s.Script))
		b.WriteString("\n")
	}
	return b.String()
}

// scriptHTMLDocument converts the markdown script to a standalone page.
func scriptHTMLDocument(md string) ([]byte, error) {
	var body bytes.Buffer
	gm := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := gm.Convert([]byte(md), &body); err != nil {
		return nil, fmt.Errorf("unable to convert markdown: %w", err)
	}

	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>PadWorld Tour</title>\n</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

func glamourStyle(style string) glamour.TermRendererOption {
	if style == styles.AutoStyle {
		return glamour.WithAutoStyle()
	}
	style, _ = homedir.Expand(style)
	return glamour.WithStylePath(style)
}

func runScript(cmd *cobra.Command, _ []string) error {
	steps, err := loadSteps(cfg)
	if err != nil {
		return err
	}
	md := scriptMarkdown(steps)

	if scriptHTML != "" {
		html, err := scriptHTMLDocument(md)
		if err != nil {
			return err
		}
		path, _ := homedir.Expand(scriptHTML)
		if err := os.WriteFile(path, html, 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("unable to write html: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Wrote", path)
		return nil
	}

	if scriptRaw {
		_, err := fmt.Fprint(cmd.OutOrStdout(), md)
		return err //nolint:wrapcheck
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamourStyle(style),
		glamour.WithWordWrap(int(width)), //nolint:gosec
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	if _, err = fmt.Fprint(cmd.OutOrStdout(), out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}
	return nil
}
