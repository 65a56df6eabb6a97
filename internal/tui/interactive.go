package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/dynamo"
	"github.com/san-kum/clothsim/internal/physics"
	"github.com/san-kum/clothsim/internal/sim"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

var presetInfo = map[string]string{
	"reference": "10x10 drop onto a sphere",
	"silk":      "light, loose, fine grid",
	"canvas":    "heavy, damped, reflect rebound",
	"stiff":     "high stiffness, many substeps",
	"freefall":  "no collider",
}

// param is one editable knob on the config screen.
type param struct {
	name string
	get  func(*config.Config) float64
	set  func(*config.Config, float64)
}

var params = []param{
	{"mass", func(c *config.Config) float64 { return float64(c.Cloth.Mass) }, func(c *config.Config, v float64) { c.Cloth.Mass = float32(v) }},
	{"gravity", func(c *config.Config) float64 { return float64(c.Physics.Gravity) }, func(c *config.Config, v float64) { c.Physics.Gravity = float32(v) }},
	{"structural", func(c *config.Config) float64 { return float64(c.Physics.Structural.Stiffness) }, func(c *config.Config, v float64) { c.Physics.Structural.Stiffness = float32(v) }},
	{"shear", func(c *config.Config) float64 { return float64(c.Physics.Shear.Stiffness) }, func(c *config.Config, v float64) { c.Physics.Shear.Stiffness = float32(v) }},
	{"bend", func(c *config.Config) float64 { return float64(c.Physics.Bend.Stiffness) }, func(c *config.Config, v float64) { c.Physics.Bend.Stiffness = float32(v) }},
	{"damping", func(c *config.Config) float64 { return float64(c.Physics.Damping) }, func(c *config.Config, v float64) { c.Physics.Damping = float32(v) }},
	{"restitution", func(c *config.Config) float64 { return float64(c.Physics.Restitution) }, func(c *config.Config, v float64) { c.Physics.Restitution = float32(v) }},
	{"radius", func(c *config.Config) float64 { return float64(c.Physics.Sphere.Radius) }, func(c *config.Config, v float64) { c.Physics.Sphere.Radius = float32(v) }},
	{"altitude", func(c *config.Config) float64 { return float64(c.Cloth.Altitude) }, func(c *config.Config, v float64) { c.Cloth.Altitude = float32(v) }},
	{"frame_dt", func(c *config.Config) float64 { return float64(c.Run.FrameDt) }, func(c *config.Config, v float64) { c.Run.FrameDt = float32(v) }},
}

type state int

const (
	stateMenu state = iota
	stateConfig
	stateSim
)

type model struct {
	state   state
	cursor  int
	presets []string
	cfg     *config.Config

	paramCursor int
	editing     bool
	editBuf     string

	running   bool
	paused    bool
	session   *sim.Session
	params    dynamo.Params
	springs   []physics.Spring
	particles []physics.Particle
	last      *sim.Frame
	view      View
	speed     float64
	history   []float64
	lastFrame time.Time
	fps       float64
	err       error

	width  int
	height int
}

func NewInteractiveApp() *model {
	return &model{
		state:   stateMenu,
		presets: config.ListPresets(),
		speed:   1.0,
		history: make([]float64, 0, 60),
		width:   80,
		height:  30,
	}
}

func (m model) Init() tea.Cmd { return nil }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(16*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		if m.state != stateSim {
			return m, nil
		}
		if m.running && !m.paused && m.session != nil {
			now := time.Now()
			if !m.lastFrame.IsZero() {
				if dt := now.Sub(m.lastFrame).Seconds(); dt > 0 {
					m.fps = 1.0 / dt
				}
			}
			m.lastFrame = now
			steps := int(m.speed)
			if steps < 1 {
				steps = 1
			}
			for i := 0; i < steps && m.err == nil; i++ {
				m.step()
			}
		}
		if m.running && m.state == stateSim {
			return m, tick()
		}
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch m.state {
	case stateMenu:
		return m.menuKey(msg)
	case stateConfig:
		return m.configKey(msg)
	case stateSim:
		return m.simKey(msg)
	}
	return m, nil
}

func (m model) menuKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.presets)-1 {
			m.cursor++
		}
	case "enter", " ":
		m.cfg = config.GetPreset(m.presets[m.cursor])
		m.state = stateConfig
		m.paramCursor = 0
	}
	return m, nil
}

func (m model) configKey(msg tea.KeyMsg) (model, tea.Cmd) {
	p := params[m.paramCursor]
	if m.editing {
		switch msg.String() {
		case "enter":
			var val float64
			if _, err := fmt.Sscanf(m.editBuf, "%f", &val); err == nil {
				p.set(m.cfg, val)
			}
			m.editing = false
			m.editBuf = ""
		case "esc":
			m.editing = false
			m.editBuf = ""
		case "backspace":
			if len(m.editBuf) > 0 {
				m.editBuf = m.editBuf[:len(m.editBuf)-1]
			}
		default:
			if len(msg.String()) == 1 {
				c := msg.String()[0]
				if (c >= '0' && c <= '9') || c == '.' || c == '-' {
					m.editBuf += string(c)
				}
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		m.state = stateMenu
	case "up", "k":
		if m.paramCursor > 0 {
			m.paramCursor--
		}
	case "down", "j":
		if m.paramCursor < len(params)-1 {
			m.paramCursor++
		}
	case "enter", " ":
		m.editing = true
		m.editBuf = fmt.Sprintf("%.3f", p.get(m.cfg))
	case "s":
		if err := m.start(); err != nil {
			m.err = err
			return m, nil
		}
		m.state = stateSim
		return m, tea.Batch(tea.ClearScreen, tick())
	case "left", "h":
		p.set(m.cfg, math.Max(0, p.get(m.cfg)-nudge(p.get(m.cfg))))
	case "right", "l":
		p.set(m.cfg, p.get(m.cfg)+nudge(p.get(m.cfg)))
	}
	return m, nil
}

// nudge scales arrow-key steps to the magnitude of the value.
func nudge(v float64) float64 {
	if v == 0 {
		return 0.1
	}
	return math.Pow(10, math.Floor(math.Log10(math.Abs(v)))-1)
}

func (m model) simKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.running = false
		m.state = stateMenu
		m.reset()
		return m, tea.ClearScreen
	case " ", "p":
		m.paused = !m.paused
	case "r":
		if err := m.start(); err != nil {
			m.err = err
		}
		return m, tea.ClearScreen
	case "c":
		m.running = false
		m.state = stateConfig
		m.reset()
		return m, tea.ClearScreen
	case "v":
		m.view = 1 - m.view
	case "b":
		if m.params.Rebound == dynamo.ReboundCompat {
			m.params.Rebound = dynamo.ReboundReflect
		} else {
			m.params.Rebound = dynamo.ReboundCompat
		}
	case "+", "=":
		m.speed = math.Min(m.speed*2, 16)
	case "-", "_":
		m.speed = math.Max(m.speed/2, 0.25)
	case "0":
		m.speed = 1.0
	}
	return m, nil
}

func (m *model) start() error {
	m.reset()
	if err := m.cfg.Validate(); err != nil {
		return err
	}
	p, err := m.cfg.Params()
	if err != nil {
		return err
	}
	cloth, err := m.cfg.BuildCloth()
	if err != nil {
		return err
	}
	// the model is copied on every Update, so frames land in a shared box
	last := &sim.Frame{}
	opts, err := m.cfg.SessionOptions(sim.WithValidation(true), sim.WithObserver(sim.ObserverFunc(func(f sim.Frame) {
		*last = f
	})))
	if err != nil {
		return err
	}
	s, err := sim.NewSession(cloth.Particles, cloth.Springs, opts...)
	if err != nil {
		return err
	}

	m.session = s
	m.last = last
	m.params = p
	m.springs = cloth.Springs
	m.particles = s.ReadParticles()
	m.speed = 1.0
	m.running = true
	m.paused = false
	return nil
}

func (m *model) reset() {
	m.session = nil
	m.particles = nil
	m.springs = nil
	m.history = make([]float64, 0, 60)
	m.last = &sim.Frame{}
	m.lastFrame = time.Time{}
	m.err = nil
}

func (m *model) step() {
	if err := m.session.Step(context.Background(), m.cfg.Run.FrameDt, m.params); err != nil {
		m.err = err
		m.paused = true
		return
	}
	m.particles = m.last.Particles

	minY := math.Inf(1)
	for _, p := range m.particles {
		minY = math.Min(minY, float64(p.Position.Y()))
	}
	m.history = append(m.history, minY)
	if len(m.history) > 60 {
		m.history = m.history[1:]
	}
}

func (m model) View() string {
	switch m.state {
	case stateMenu:
		return m.viewMenu()
	case stateConfig:
		return m.viewConfig()
	case stateSim:
		return m.viewSim()
	}
	return ""
}

func (m model) viewMenu() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("           " + cyan.Render("c l o t h s i m") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("\n")

	for i, name := range m.presets {
		desc := presetInfo[name]
		if i == m.cursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-12s", name)) + dim.Render(desc) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-12s", name)) + dimmer.Render(desc) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select   enter configure   q quit") + "\n")

	return b.String()
}

func (m model) viewConfig() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("      " + cyan.Render(m.cfg.Name) + "  " + dim.Render(presetInfo[m.cfg.Name]) + "\n")
	b.WriteString(dimmer.Render("      "+strings.Repeat("─", 30)) + "\n\n")

	for i, p := range params {
		val := fmt.Sprintf("%8.3f", p.get(m.cfg))
		if m.editing && i == m.paramCursor {
			val = fmt.Sprintf("%8s", m.editBuf+"▋")
		}
		if i == m.paramCursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-12s", p.name)) + magenta.Render(val) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-12s", p.name)) + dim.Render(val) + "\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n      " + red.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select  ←→ adjust  enter edit  s start  esc back") + "\n")

	return b.String()
}

func (m model) viewSim() string {
	cw := m.width - 6
	ch := m.height - 12
	if cw < 50 {
		cw = 50
	}
	if ch < 12 {
		ch = 12
	}

	canvas := NewCanvas(cw, ch)
	canvas.DrawCloth(m.particles, m.springs, m.params.Sphere, m.view, 12)

	var b strings.Builder

	statusIcon := green.Render("●")
	statusText := green.Render("running")
	if m.paused {
		statusIcon = yellow.Render("○")
		statusText = yellow.Render("paused")
	}
	if m.err != nil {
		statusIcon = red.Render("✕")
		statusText = red.Render("diverged")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s  %s\n",
		statusIcon, cyan.Render(m.cfg.Name), statusText, dim.Render(m.view.String()+" view")))

	b.WriteString(fmt.Sprintf("   %s  %s  %s  %s\n\n",
		dim.Render(fmt.Sprintf("frame %d", m.last.Index)),
		dim.Render(fmt.Sprintf("t=%.2fs", m.last.Time)),
		dim.Render(fmt.Sprintf("substeps %d", m.last.Substeps)),
		dim.Render(fmt.Sprintf("%.0ffps ×%.2g", m.fps, m.speed))))

	for _, row := range canvas.Rows() {
		b.WriteString("   " + row + "\n")
	}

	var set *physics.ConstraintSet
	if m.session != nil {
		set = m.session.Springs()
	}
	e := physics.Energy(m.particles, set, m.params)
	ke, pe := e.Kinetic, e.Elastic
	if total := ke + pe; total > 0 {
		energyWidth := 20
		keBar := int(ke / total * float64(energyWidth))
		peBar := energyWidth - keBar
		b.WriteString(fmt.Sprintf("\n   energy %s%s  %s %.1f  %s %.1f  %s %.1f\n",
			green.Render(strings.Repeat("█", keBar)),
			yellow.Render(strings.Repeat("█", peBar)),
			green.Render("KE"), ke,
			yellow.Render("elastic"), pe,
			dim.Render("PE"), e.Gravitational))
	}

	b.WriteString(fmt.Sprintf("   %s %s  %s %s\n",
		dim.Render("rebound"), white.Render(m.params.Rebound.String()),
		dim.Render("hits"), white.Render(fmt.Sprintf("%d", m.last.Collisions))))

	if len(m.history) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("min y"), cyan.Render(sparkline(m.history, 24))))
	}

	if m.err != nil {
		b.WriteString("   " + red.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n" + dim.Render("   space pause  ±speed  v view  b rebound  r reset  c config  q quit") + "\n")

	return b.String()
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		if idx > 7 {
			idx = 7
		}
		if idx < 0 {
			idx = 0
		}
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

// RunInteractive starts the full-screen cloth browser.
func RunInteractive() error {
	p := tea.NewProgram(NewInteractiveApp(), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
