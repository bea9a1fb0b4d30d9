package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start          key.Binding
	Refresh        key.Binding
	Ensure         key.Binding
	Failure        key.Binding
	ShutdownSource key.Binding
	ShutdownDest   key.Binding
	ErrorType      key.Binding
	Console        key.Binding
	Focus          key.Binding
	FocusPrev      key.Binding
	Blur           key.Binding
	Submit         key.Binding
	LogUp          key.Binding
	LogDown        key.Binding
	Help           key.Binding
	Quit           key.Binding
}

var keys = keyMap{
	Start: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "start simulation"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh nodes"),
	),
	Ensure: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "ensure nodes"),
	),
	Failure: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "toggle failure"),
	),
	ShutdownSource: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "shut down source"),
	),
	ShutdownDest: key.NewBinding(
		key.WithKeys("X"),
		key.WithHelp("X", "shut down destination"),
	),
	ErrorType: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "cycle error type"),
	),
	Console: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "ping all nodes"),
	),
	Focus: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "edit form"),
	),
	FocusPrev: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev field"),
	),
	Blur: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "leave form"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "start simulation"),
	),
	LogUp: key.NewBinding(
		key.WithKeys("up", "k", "pgup"),
		key.WithHelp("↑/k", "scroll log"),
	),
	LogDown: key.NewBinding(
		key.WithKeys("down", "j", "pgdown"),
		key.WithHelp("↓/j", "scroll log"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "more keys"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Refresh, k.Focus, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.ErrorType, k.Refresh, k.Ensure},
		{k.Failure, k.ShutdownSource, k.ShutdownDest, k.Console},
		{k.Focus, k.FocusPrev, k.Blur, k.Submit},
		{k.LogUp, k.LogDown, k.Help, k.Quit},
	}
}
