package tui

import "github.com/charmbracelet/lipgloss"

var (
	canvasStyle   = lipgloss.NewStyle().Padding(1, 2)
	statsStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(44)
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sectionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true).MarginTop(1)
	graphStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	pausedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)
