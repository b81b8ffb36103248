package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/kychandar/hammer/ds"
	encodingregistry "github.com/kychandar/hammer/services/encodingRegistry"
	"github.com/kychandar/hammer/services/panels"
	payloaddecoder "github.com/kychandar/hammer/services/payloadDecoder"
)

const (
	payloadLines   = 12
	replyLimit     = 20
	previewRefresh = time.Second
)

var (
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Underline(true).Padding(0, 1)
	inactiveTabStyle = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	faintStyle       = lipgloss.NewStyle().Faint(true)
	headingStyle     = lipgloss.NewStyle().Bold(true)
	detailStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	switch m.tab {
	case TabSession:
		b.WriteString(m.renderSession())
	case TabSub:
		b.WriteString(m.renderSub())
	case TabPut:
		b.WriteString(m.renderPut())
	case TabGet:
		b.WriteString(m.renderGet())
	}

	b.WriteString("\n")
	if m.editing != fieldNone {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	if m.status != "" {
		if m.isErr {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(m.status)
		}
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, tabCount+1)
	for t := range Tab(tabCount) {
		if t == m.tab {
			tabs = append(tabs, activeTabStyle.Render(t.String()))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(t.String()))
		}
	}
	tabs = append(tabs, m.connectionBadge())
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) connectionBadge() string {
	s := m.app.Session
	switch {
	case s.Connected:
		return okStyle.Render(fmt.Sprintf("● connected #%d", s.SessionID))
	case s.Connecting:
		return faintStyle.Render("○ connecting")
	default:
		return faintStyle.Render("○ disconnected")
	}
}

func (m Model) renderHelp() string {
	parts := make([]string, 0, len(m.keys.short()))
	for _, k := range m.keys.short() {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return faintStyle.Render(strings.Join(parts, " · "))
}

// row renders one list line, highlighted when it is the cursor row.
func (m Model) row(i int, text string) string {
	if i == m.selected() {
		return cursorStyle.Render("> "+text) + "\n"
	}
	return "  " + text + "\n"
}

func inlineErr(msg string) string {
	if msg == "" {
		return ""
	}
	return " " + errorStyle.Render(msg)
}

func (m Model) renderSession() string {
	var b strings.Builder
	s := m.app.Session
	if len(s.Files) == 0 {
		b.WriteString(faintStyle.Render("no session config files, press a to add one"))
		b.WriteString("\n")
	}
	for i, f := range s.Files {
		b.WriteString(m.row(i, fmt.Sprintf("%s  %s", f.Name, f.Path)+inlineErr(f.Err)))
	}
	if s.Status != "" {
		b.WriteString("\n" + s.Status + "\n")
	}
	if i := m.selected(); i >= 0 && s.Files[i].Path != "" {
		rep := m.preview.get(s, i)
		b.WriteString(detailStyle.Render(clampLines(renderPayload(rep, nil, m.opts.HexColumns), payloadLines)))
	}
	return b.String()
}

// previewCache keeps the decoded session config file between frames.
type previewCache struct {
	path string
	at   time.Time
	rep  payloaddecoder.Representation
}

func (c *previewCache) get(s *panels.SessionPanel, i int) payloaddecoder.Representation {
	path := s.Files[i].Path
	if c.rep == nil || c.path != path || time.Since(c.at) > previewRefresh {
		c.path, c.at, c.rep = path, time.Now(), s.Preview(i)
	}
	return c.rep
}

func (m Model) renderSub() string {
	var b strings.Builder
	sub := m.app.Sub
	if len(sub.Items) == 0 {
		b.WriteString(faintStyle.Render("no subscriptions, press a to add one"))
		b.WriteString("\n")
	}
	for i, s := range sub.Items {
		state := "○"
		switch {
		case s.Pending:
			state = "…"
		case s.Subscribed:
			state = okStyle.Render("●")
		}
		line := fmt.Sprintf("%s %s  %s  origin=%s  buffer=%d", state, s.Name, s.KeyExpr, s.Origin, s.BufferSize)
		b.WriteString(m.row(i, line+inlineErr(s.Err)))
	}

	i := m.selected()
	if i < 0 {
		return b.String()
	}
	s := sub.Items[i]
	var detail strings.Builder
	keys := s.Keys("")
	if len(keys) == 0 {
		detail.WriteString(faintStyle.Render("no samples"))
	}
	for n, k := range keys {
		h, ok := s.History(k)
		if !ok {
			continue
		}
		if n > 0 {
			detail.WriteString("\n")
		}
		detail.WriteString(headingStyle.Render(k))
		fmt.Fprintf(&detail, "  %s  total=%d\n", sub.Rate(s, k), h.Total)
		if latest, ok := h.Latest(); ok {
			detail.WriteString(renderSample(latest.Sample, latest.ReceivedAt, m.opts.HexColumns))
		}
	}
	b.WriteString(detailStyle.Render(detail.String()))
	return b.String()
}

func (m Model) renderPut() string {
	var b strings.Builder
	put := m.app.Put
	if len(put.Items) == 0 {
		b.WriteString(faintStyle.Render("no publishers, press a to add one"))
		b.WriteString("\n")
	}
	for i, it := range put.Items {
		line := fmt.Sprintf("%s  %s  %s  cc=%s  prio=%s", it.Name, it.Key, encodingregistry.Label(it.Editor.Encoding), it.CongestionControl, it.Priority)
		b.WriteString(m.row(i, line))
	}

	i := m.selected()
	if i < 0 {
		return b.String()
	}
	it := put.Items[i]
	var detail strings.Builder
	detail.WriteString(editorSummary(it.Editor.Source, it.Editor.Input, it.Editor.FilePath))
	switch {
	case it.Pending:
		detail.WriteString("\n" + faintStyle.Render("sending…"))
	case it.Status != "" && it.OK:
		detail.WriteString("\n" + okStyle.Render(it.Status))
	case it.Status != "":
		detail.WriteString("\n" + errorStyle.Render(it.Status))
	}
	b.WriteString(detailStyle.Render(detail.String()))
	return b.String()
}

func (m Model) renderGet() string {
	var b strings.Builder
	get := m.app.Get
	if len(get.Items) == 0 {
		b.WriteString(faintStyle.Render("no queries, press a to add one"))
		b.WriteString("\n")
	}
	for i, it := range get.Items {
		line := fmt.Sprintf("%s  %s  target=%s  consolidation=%s  locality=%s  timeout=%s",
			it.Name, it.Selector, it.Target, it.Consolidation, it.Locality, it.Timeout)
		b.WriteString(m.row(i, line))
	}

	i := m.selected()
	if i < 0 {
		return b.String()
	}
	it := get.Items[i]
	var detail strings.Builder
	if it.HasValue {
		detail.WriteString("value " + editorSummary(it.Value.Source, it.Value.Input, it.Value.FilePath) + "\n")
	}
	if it.Status != "" {
		detail.WriteString(faintStyle.Render(it.Status) + "\n")
	}
	if len(it.Replies) == 0 {
		detail.WriteString(faintStyle.Render("no replies"))
	}
	for n, r := range it.Replies {
		if n == replyLimit {
			fmt.Fprintf(&detail, "… %d more", len(it.Replies)-n)
			break
		}
		detail.WriteString(renderReply(r, m.opts.HexColumns))
	}
	b.WriteString(detailStyle.Render(strings.TrimRight(detail.String(), "\n")))
	return b.String()
}

func editorSummary(source ds.PayloadSource, input, path string) string {
	if source == ds.PayloadFromFile {
		return "file " + path
	}
	return clampLines(input, payloadLines)
}

func renderReply(r ds.Reply, hexColumns int) string {
	if r.Err != nil {
		rep := payloaddecoder.Decode(r.Err.Encoding, r.Err.Payload)
		return errorStyle.Render("error ") + renderPayload(rep, r.Err.Payload, hexColumns) + "\n"
	}
	if r.Sample == nil {
		return ""
	}
	return headingStyle.Render(r.Sample.KeyExpr) + "\n" + renderSample(*r.Sample, time.Time{}, hexColumns)
}

func renderSample(s ds.Sample, receivedAt time.Time, hexColumns int) string {
	var b strings.Builder
	b.WriteString(faintStyle.Render(encodingregistry.Label(s.Encoding)))
	if !receivedAt.IsZero() {
		b.WriteString(faintStyle.Render("  " + receivedAt.Format(time.TimeOnly)))
	}
	if len(s.Attachment) > 0 {
		b.WriteString(faintStyle.Render(fmt.Sprintf("  attachment %d bytes", len(s.Attachment))))
	}
	b.WriteString("\n")
	rep := payloaddecoder.Decode(s.Encoding, s.Payload)
	b.WriteString(clampLines(renderPayload(rep, s.Payload, hexColumns), payloadLines))
	b.WriteString("\n")
	return b.String()
}

// renderPayload turns a decoded payload into terminal text. JSON is syntax
// highlighted; images and media are described, not drawn.
func renderPayload(rep payloaddecoder.Representation, data []byte, hexColumns int) string {
	switch r := rep.(type) {
	case payloaddecoder.JSON:
		return highlightJSON(r.Pretty)
	case payloaddecoder.Text:
		return r.Content
	case payloaddecoder.Binary:
		return payloaddecoder.NewHexView(data, hexColumns).Render(0)
	case payloaddecoder.Image:
		return fmt.Sprintf("image %dx%d", r.Width, r.Height)
	case payloaddecoder.Audio:
		return fmt.Sprintf("audio, %d bytes", r.Size)
	case payloaddecoder.Video:
		return fmt.Sprintf("video, %d bytes", r.Size)
	case payloaddecoder.Error:
		return errorStyle.Render(r.Message)
	}
	return ""
}

func highlightJSON(src string) string {
	var b strings.Builder
	if err := quick.Highlight(&b, src, "json", "terminal256", "monokai"); err != nil {
		return src
	}
	return b.String()
}

func clampLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[:n], "\n") + "\n" + faintStyle.Render(fmt.Sprintf("… %d more lines", len(lines)-n))
}
