// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/recall/internal/config"
	"github.com/sigil-dev/recall/internal/secrets"
	recallerr "github.com/sigil-dev/recall/pkg/errors"
)

// providerChoice is one selectable provider in the wizard.
type providerChoice struct {
	Name      string
	NeedsKey  bool
	Model     string
	Dimension int
}

// Azure needs a deployment endpoint, so it is configured by editing the file.
var embeddingChoices = []providerChoice{
	{Name: "openai", NeedsKey: true, Model: "text-embedding-3-large", Dimension: 3072},
	{Name: "google", NeedsKey: true, Model: "gemini-embedding-001", Dimension: 3072},
	{Name: "ollama", Model: "nomic-embed-text", Dimension: 768},
	{Name: "hash", Model: "hash", Dimension: 256},
}

var judgeChoices = []providerChoice{
	{Name: "anthropic", NeedsKey: true},
	{Name: "openai", NeedsKey: true},
	{Name: "google", NeedsKey: true},
	{Name: "ollama"},
}

type initWizardStep int

const (
	stepEmbedding    initWizardStep = iota // select embedding provider
	stepEmbeddingKey                       // enter embedding API key
	stepJudge                              // select judge provider
	stepJudgeKey                           // enter judge API key
	stepWriting                            // storing secrets and config (spinner)
	stepDone
	stepError
)

// initResult holds the collected wizard answers. Keys maps provider name to
// API key; a provider used for both roles is asked once.
type initResult struct {
	Embedding providerChoice
	Judge     providerChoice
	Keys      map[string]string
}

type configWrittenMsg struct{ path string }

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

type initModel struct {
	step     initWizardStep
	cursor   int
	keyInput textinput.Model
	spinner  spinner.Model

	result        initResult
	validationErr string
	configPath    string
	errFinal      error

	secretStore    secrets.Store
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	key := textinput.New()
	key.Placeholder = "paste API key here"
	key.EchoMode = textinput.EchoPassword
	key.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepEmbedding,
		keyInput:    key,
		spinner:     sp,
		secretStore: store,
		result:      initResult{Keys: map[string]string{}},
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	if m.step == stepEmbeddingKey || m.step == stepJudgeKey {
		var cmd tea.Cmd
		m.keyInput, cmd = m.keyInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepEmbedding:
		return m.handleChoice(msg, embeddingChoices)
	case stepJudge:
		return m.handleChoice(msg, judgeChoices)
	case stepEmbeddingKey, stepJudgeKey:
		return m.handleKeyInput(msg)
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleChoice(msg tea.KeyMsg, choices []providerChoice) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(choices)-1 {
			m.cursor++
		}
	case "enter":
		choice := choices[m.cursor]
		m.cursor = 0
		m.validationErr = ""
		if m.step == stepEmbedding {
			m.result.Embedding = choice
			return m.askKeyOr(choice, stepEmbeddingKey, stepJudge)
		}
		m.result.Judge = choice
		return m.askKeyOr(choice, stepJudgeKey, stepWriting)
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// askKeyOr moves to keyStep when choice needs a key that has not been
// entered yet, else to next.
func (m initModel) askKeyOr(choice providerChoice, keyStep, next initWizardStep) (tea.Model, tea.Cmd) {
	if _, have := m.result.Keys[choice.Name]; choice.NeedsKey && !have {
		m.step = keyStep
		m.keyInput.SetValue("")
		m.keyInput.Focus()
		return m, textinput.Blink
	}
	return m.advance(next)
}

func (m initModel) advance(next initWizardStep) (tea.Model, tea.Cmd) {
	m.step = next
	if next == stepWriting {
		return m, tea.Batch(m.spinner.Tick, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite))
	}
	return m, nil
}

func (m initModel) handleKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.keyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.validationErr = ""
		m.keyInput.Blur()
		if m.step == stepEmbeddingKey {
			m.result.Keys[m.result.Embedding.Name] = key
			return m.advance(stepJudge)
		}
		m.result.Keys[m.result.Judge.Name] = key
		return m.advance(stepWriting)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Recall Setup  ") + "\n\n")

	switch m.step {
	case stepEmbedding:
		b.WriteString(promptStyle.Render("Step 1/2: Embedding provider") + "\n\n")
		writeChoices(&b, embeddingChoices, m.cursor)
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepJudge:
		b.WriteString(promptStyle.Render("Step 2/2: Judge provider") + "\n\n")
		writeChoices(&b, judgeChoices, m.cursor)
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepEmbeddingKey, stepJudgeKey:
		name := m.result.Embedding.Name
		if m.step == stepJudgeKey {
			name = m.result.Judge.Name
		}
		b.WriteString(promptStyle.Render(name+" API key") + "\n\n")
		b.WriteString(m.keyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepWriting:
		b.WriteString(m.spinner.View() + " Saving keys to the OS keyring…\n")

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("recall serve") + " to start the API.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func writeChoices(b *strings.Builder, choices []providerChoice, cursor int) {
	for i, c := range choices {
		if i == cursor {
			b.WriteString(selectedStyle.Render("  > "+c.Name) + "\n")
		} else {
			b.WriteString(dimStyle.Render("    "+c.Name) + "\n")
		}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretsAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// generatedConfig is the subset of recall.yaml the wizard writes; everything
// else keeps its default.
type generatedConfig struct {
	Memory struct {
		EmbModelName string `yaml:"emb_model_name"`
		Dimension    int    `yaml:"dimension"`
	} `yaml:"memory"`
	Embedding struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key,omitempty"`
	} `yaml:"embedding"`
	Judge struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key,omitempty"`
	} `yaml:"judge"`
}

func keyName(provider string) string {
	return provider + "-api-key"
}

// GenerateConfigYAML renders the wizard result. API keys appear only as
// keyring:// references.
func GenerateConfigYAML(result initResult) (string, error) {
	var gc generatedConfig
	gc.Memory.EmbModelName = result.Embedding.Model
	gc.Memory.Dimension = result.Embedding.Dimension
	gc.Embedding.Provider = result.Embedding.Name
	if result.Embedding.NeedsKey {
		gc.Embedding.APIKey = secrets.Ref{Service: secrets.DefaultService, Key: keyName(result.Embedding.Name)}.String()
	}
	gc.Judge.Provider = result.Judge.Name
	if result.Judge.NeedsKey {
		gc.Judge.APIKey = secrets.Ref{Service: secrets.DefaultService, Key: keyName(result.Judge.Name)}.String()
	}

	body, err := yaml.Marshal(&gc)
	if err != nil {
		return "", recallerr.Errorf(recallerr.CodeCLIOutputFailure, "rendering config: %w", err)
	}
	return "# recall configuration, generated by recall init\n\n" + string(body), nil
}

// storeSecretsAndWriteConfig saves the entered keys to the keyring and
// writes the config file. Keys already stored are not rolled back when the
// file write fails; a rerun overwrites them.
func storeSecretsAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	for provider, key := range result.Keys {
		if err := store.Set(secrets.DefaultService, keyName(provider), key); err != nil {
			return "", recallerr.Errorf(recallerr.CodeSecretStoreFailure, "storing %s API key: %w", provider, err)
		}
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}
	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", recallerr.Errorf(recallerr.CodeCLIInputInvalid,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	body, err := GenerateConfigYAML(result)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o700); err != nil {
		return "", recallerr.Errorf(recallerr.CodeConfigLoadReadFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		return "", recallerr.Errorf(recallerr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}
	return cfgPath, nil
}

// configPathForWrite is a variable so tests can redirect it.
var configPathForWrite = config.DefaultConfigPath

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a recall config file",
		Long: `Walk through choosing an embedding provider and a judge provider.

API keys are stored in the OS keyring and referenced via keyring:// URIs in
the config file. Without a terminal, or with --defaults, the commented
default config is written instead.`,
		RunE: runInit,
	}

	cmd.Flags().Bool("defaults", false, "write the default config without prompting")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	useDefaults, _ := cmd.Flags().GetBool("defaults")
	forceOverwrite, _ := cmd.Flags().GetBool("force")

	f, ok := cmd.InOrStdin().(*os.File)
	if useDefaults || !ok || !isTerminal(f) {
		return writeDefaultConfig(cmd, forceOverwrite)
	}

	m := newInitModel(secretStoreFactory())
	m.forceOverwrite = forceOverwrite

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return recallerr.Errorf(recallerr.CodeCLISetupFailure, "init wizard: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return recallerr.New(recallerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return recallerr.Errorf(recallerr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", fm.configPath)
	}
	return nil
}

func writeDefaultConfig(cmd *cobra.Command, forceOverwrite bool) error {
	path, err := configPathForWrite()
	if err != nil {
		return err
	}
	if forceOverwrite {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return recallerr.Errorf(recallerr.CodeConfigLoadReadFailure, "removing %s: %w", path, err)
		}
	}

	written, err := config.WriteDefault(path)
	if err != nil {
		return err
	}
	if !written {
		return recallerr.Errorf(recallerr.CodeCLIInputInvalid,
			"config file already exists at %s; use --force to overwrite", path)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
	return err
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
