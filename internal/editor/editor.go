// Package editor is a terminal UI for maintaining the recipe file.
//
// The list screen shows every recipe in a table; a form screen edits one
// recipe. Changes stay in memory until saved with "s".
package editor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"meal-mailer/internal/recipe"
)

// Saver persists the edited collection; *storage.RecipeStore satisfies it.
type Saver interface {
	Save(recipes []recipe.Recipe) error
}

type screen int

const (
	screenList screen = iota
	screenForm
	screenConfirmDelete
	screenConfirmQuit
)

const (
	fieldName = iota
	fieldSlots
	fieldIngredients
	fieldInstructions
	fieldCount
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginBottom(1)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
)

// Model is the editor state.
type Model struct {
	recipes []recipe.Recipe
	saver   Saver

	screen  screen
	table   table.Model
	editing int // index of the recipe in the form, -1 for a new one
	dirty   bool
	status  string
	err     error

	name         textinput.Model
	slots        textinput.Model
	ingredients  textarea.Model
	instructions textarea.Model
	focus        int
}

// New creates an editor over recipes. Edits are written through saver.
func New(recipes []recipe.Recipe, saver Saver) *Model {
	m := &Model{
		recipes: append([]recipe.Recipe{}, recipes...),
		saver:   saver,
		editing: -1,
	}

	m.table = table.New(
		table.WithColumns([]table.Column{
			{Title: "Name", Width: 28},
			{Title: "Meal times", Width: 24},
			{Title: "Ingredients", Width: 40},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	m.name = textinput.New()
	m.name.Placeholder = "Recipe name"
	m.name.CharLimit = 120
	m.slots = textinput.New()
	m.slots.Placeholder = "breakfast, lunch, dinner"
	m.slots.CharLimit = 200
	m.ingredients = textarea.New()
	m.ingredients.Placeholder = "One ingredient per line"
	m.ingredients.CharLimit = 0
	m.ingredients.SetHeight(6)
	m.instructions = textarea.New()
	m.instructions.Placeholder = "How to cook it"
	m.instructions.CharLimit = 0
	m.instructions.SetHeight(6)

	m.refreshRows()
	return m
}

// Recipes returns the current, possibly unsaved, collection.
func (m *Model) Recipes() []recipe.Recipe {
	return m.recipes
}

// Dirty reports whether there are unsaved changes.
func (m *Model) Dirty() bool {
	return m.dirty
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.screen {
		case screenList:
			return m.updateList(msg)
		case screenForm:
			return m.updateForm(msg)
		case screenConfirmDelete:
			return m.updateConfirmDelete(msg)
		case screenConfirmQuit:
			return m.updateConfirmQuit(msg)
		}
	}
	return m, nil
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "q", "esc":
		if m.dirty {
			m.screen = screenConfirmQuit
			return m, nil
		}
		return m, tea.Quit
	case "a":
		return m, m.openForm(-1)
	case "e", "enter":
		if len(m.recipes) == 0 {
			return m, nil
		}
		return m, m.openForm(m.table.Cursor())
	case "d":
		if len(m.recipes) > 0 {
			m.screen = screenConfirmDelete
		}
		return m, nil
	case "s":
		m.save()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.screen = screenList
		m.status = "edit cancelled"
		m.table.Focus()
		return m, nil
	case "ctrl+s":
		if err := m.submitForm(); err != nil {
			m.err = err
			return m, nil
		}
		m.screen = screenList
		m.table.Focus()
		return m, nil
	case "tab":
		return m, m.focusField((m.focus + 1) % fieldCount)
	case "shift+tab":
		return m, m.focusField((m.focus + fieldCount - 1) % fieldCount)
	}

	var cmd tea.Cmd
	switch m.focus {
	case fieldName:
		m.name, cmd = m.name.Update(msg)
	case fieldSlots:
		m.slots, cmd = m.slots.Update(msg)
	case fieldIngredients:
		m.ingredients, cmd = m.ingredients.Update(msg)
	case fieldInstructions:
		m.instructions, cmd = m.instructions.Update(msg)
	}
	return m, cmd
}

func (m *Model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.screen = screenList
	if msg.String() != "y" {
		m.status = "delete cancelled"
		return m, nil
	}
	i := m.table.Cursor()
	if i < 0 || i >= len(m.recipes) {
		return m, nil
	}
	name := m.recipes[i].Name
	m.recipes = append(m.recipes[:i], m.recipes[i+1:]...)
	m.dirty = true
	m.status = fmt.Sprintf("deleted %q", name)
	m.refreshRows()
	return m, nil
}

func (m *Model) updateConfirmQuit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y":
		return m, tea.Quit
	case "s":
		if m.save() {
			return m, tea.Quit
		}
	}
	m.screen = screenList
	return m, nil
}

func (m *Model) openForm(index int) tea.Cmd {
	m.editing = index
	m.screen = screenForm
	m.err = nil
	m.table.Blur()

	var r recipe.Recipe
	if index >= 0 {
		r = m.recipes[index]
	}
	m.name.SetValue(r.Name)
	m.slots.SetValue(strings.Join(r.MealTimeEligibility, ", "))
	m.ingredients.SetValue(strings.Join(r.Ingredients, "\n"))
	m.instructions.SetValue(r.Instructions)
	return m.focusField(fieldName)
}

func (m *Model) focusField(field int) tea.Cmd {
	m.focus = field
	m.name.Blur()
	m.slots.Blur()
	m.ingredients.Blur()
	m.instructions.Blur()
	switch field {
	case fieldName:
		return m.name.Focus()
	case fieldSlots:
		return m.slots.Focus()
	case fieldIngredients:
		return m.ingredients.Focus()
	default:
		return m.instructions.Focus()
	}
}

// submitForm parses the form back into a recipe: entries are trimmed and
// empty ones dropped.
func (m *Model) submitForm() error {
	r := recipe.Recipe{
		Name:                strings.TrimSpace(m.name.Value()),
		MealTimeEligibility: recipe.SplitList(m.slots.Value(), ","),
		Ingredients:         recipe.SplitList(m.ingredients.Value(), "\n"),
		Instructions:        strings.TrimSpace(m.instructions.Value()),
	}
	if r.Name == "" {
		return fmt.Errorf("recipe name is required")
	}
	for i, other := range m.recipes {
		if i != m.editing && other.Name == r.Name {
			return fmt.Errorf("a recipe named %q already exists", r.Name)
		}
	}

	if m.editing >= 0 {
		m.recipes[m.editing] = r
		m.status = fmt.Sprintf("updated %q", r.Name)
	} else {
		m.recipes = append(m.recipes, r)
		m.status = fmt.Sprintf("added %q", r.Name)
	}
	m.dirty = true
	m.refreshRows()
	return nil
}

func (m *Model) save() bool {
	if err := m.saver.Save(m.recipes); err != nil {
		m.err = fmt.Errorf("failed to save recipes: %w", err)
		return false
	}
	m.dirty = false
	m.status = fmt.Sprintf("saved %d recipes", len(m.recipes))
	return true
}

func (m *Model) refreshRows() {
	rows := make([]table.Row, 0, len(m.recipes))
	for _, r := range m.recipes {
		rows = append(rows, table.Row{r.Name, strings.Join(r.MealTimeEligibility, ", "), strings.Join(r.Ingredients, ", ")})
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

func (m *Model) resize(width, height int) {
	if height > 8 {
		m.table.SetHeight(height - 8)
	}
	if width > 4 {
		m.name.Width = width - 4
		m.slots.Width = width - 4
		m.ingredients.SetWidth(width - 4)
		m.instructions.SetWidth(width - 4)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	switch m.screen {
	case screenForm:
		title := "New recipe"
		if m.editing >= 0 {
			title = "Edit recipe"
		}
		b.WriteString(titleStyle.Render(title) + "\n")
		b.WriteString(labelStyle.Render("Name") + "\n" + m.name.View() + "\n\n")
		b.WriteString(labelStyle.Render("Meal times (comma separated)") + "\n" + m.slots.View() + "\n\n")
		b.WriteString(labelStyle.Render("Ingredients") + "\n" + m.ingredients.View() + "\n\n")
		b.WriteString(labelStyle.Render("Instructions") + "\n" + m.instructions.View() + "\n")
		b.WriteString(m.footer("tab next field • ctrl+s apply • esc cancel"))
	default:
		title := fmt.Sprintf("Recipes (%d)", len(m.recipes))
		if m.dirty {
			title += " *"
		}
		b.WriteString(titleStyle.Render(title) + "\n")
		b.WriteString(m.table.View() + "\n")
		help := "a add • e edit • d delete • s save • q quit"
		switch m.screen {
		case screenConfirmDelete:
			help = fmt.Sprintf("delete %q? y to confirm, any other key to cancel", m.recipes[m.table.Cursor()].Name)
		case screenConfirmQuit:
			help = "unsaved changes: y quit without saving • s save and quit • any other key to stay"
		}
		b.WriteString(m.footer(help))
	}
	return b.String()
}

func (m *Model) footer(help string) string {
	var b strings.Builder
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(statusStyle.Render(m.status) + "\n")
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

// Run opens the editor in the terminal and blocks until the user quits.
func Run(recipes []recipe.Recipe, saver Saver) error {
	if _, err := tea.NewProgram(New(recipes, saver), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}
	return nil
}
