// Package console は端末上でのアラート表示と画面遷移を提供する。
package console

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/nao1215/investapp/pkg/httpclient"
)

var (
	colorWarning = lipgloss.Color("#F59E0B")
	colorMuted   = lipgloss.Color("#6B7280")
	colorAccent  = lipgloss.Color("#7C3AED")
)

// Alerts はアラートを枠付きの箱として端末に書き出すAlertSurface。
// 入力が与えられた場合はEnterが押されるまで待ってから閉じる。
type Alerts struct {
	mu  sync.Mutex
	out io.Writer
	in  *bufio.Reader

	box   lipgloss.Style
	title lipgloss.Style
	hint  lipgloss.Style
}

// NewAlerts はoutにアラートを書き出すAlertsを生成する。
// inがnilの場合、アラートは表示直後に閉じたものとして扱う。
// 色はoutが端末かどうかに合わせて決まる。
func NewAlerts(out io.Writer, in io.Reader) *Alerts {
	r := lipgloss.NewRenderer(out)
	a := &Alerts{
		out: out,
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorWarning).
			Padding(0, 2).
			MarginTop(1),
		title: r.NewStyle().
			Bold(true).
			Foreground(colorWarning),
		hint: r.NewStyle().
			Foreground(colorMuted),
	}
	if in != nil {
		a.in = bufio.NewReader(in)
	}
	return a
}

// Show はアラートを表示し、閉じられたらOnCloseを呼ぶ。
func (a *Alerts) Show(alert httpclient.Alert) {
	a.mu.Lock()
	body := lipgloss.JoinVertical(lipgloss.Left, a.title.Render(alert.Title), alert.Message)
	fmt.Fprintln(a.out, a.box.Render(body))
	if a.in != nil {
		fmt.Fprint(a.out, a.hint.Render(fmt.Sprintf("(%s: Enter)", alert.ButtonText))+" ")
		// 入力が閉じていても閉じたものとして扱う
		_, _ = a.in.ReadString('\n')
	}
	a.mu.Unlock()

	if alert.OnClose != nil {
		alert.OnClose()
	}
}

// Navigator は遷移先を記録し端末に表示するNavigator。
type Navigator struct {
	mu      sync.Mutex
	out     io.Writer
	hints   map[string]string
	history []string
}

// NewNavigator はoutに遷移先を書き出すNavigatorを生成する。outはnilでもよい。
// hintsには画面名ごとに次に実行するとよいコマンドを渡す。
func NewNavigator(out io.Writer, hints map[string]string) *Navigator {
	return &Navigator{out: out, hints: hints}
}

// NavigateTo はrouteへの遷移を記録する。
func (n *Navigator) NavigateTo(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.history = append(n.history, route)
	if n.out == nil {
		return
	}
	if hint, ok := n.hints[route]; ok {
		fmt.Fprintf(n.out, "→ %s (次のコマンド: %s)\n", route, hint)
		return
	}
	fmt.Fprintf(n.out, "→ %s\n", route)
}

// Current は最後に遷移した画面を返す。遷移していなければ空文字列。
func (n *Navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.history) == 0 {
		return ""
	}
	return n.history[len(n.history)-1]
}

// History はこれまでの遷移先を順に返す。
func (n *Navigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, len(n.history))
	copy(out, n.history)
	return out
}
