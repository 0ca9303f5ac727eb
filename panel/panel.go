package panel

import (
	"fmt"
	"log"
	"os"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Display is the hardware surface the service pushes encoded buffers
// to. Mock satisfies it for development machines without the HAT.
type Display interface {
	Init() error
	Display(buf []byte) error
	Clear() error
	Sleep() error
	Close() error
}

// Config selects the SPI port and control pins. Zero values pick the
// HAT's stock wiring on a Raspberry Pi.
type Config struct {
	Port  string // SPI port name, default "SPI0.0"
	DC    string // data/command pin, default "GPIO25"
	Reset string // default "GPIO17"
	Busy  string // default "GPIO24"
	Speed physic.Frequency
}

// Waveshare 7.3inch (E) controller commands.
const (
	cmdCMDH         = 0xAA
	cmdPowerSetting = 0x01
	cmdPanelSetting = 0x00
	cmdPowerOff     = 0x02
	cmdPowerOffSeq  = 0x03
	cmdPowerOn      = 0x04
	cmdBoosterSoft  = 0x06
	cmdDeepSleep    = 0x07
	cmdDataStart    = 0x10
	cmdRefresh      = 0x12
	cmdPLL          = 0x30
	cmdVCOMInterval = 0x50
	cmdTCON         = 0x60
	cmdResolution   = 0x61
	cmdVDCS         = 0x82
)

const (
	// Full-color refresh runs 30-40s on the real panel; the busy line
	// stays low the whole time.
	refreshTimeout = 2 * time.Minute
	resetTimeout   = 5 * time.Second
)

// EPD drives the panel over spidev plus three GPIO lines.
type EPD struct {
	port spi.PortCloser
	conn spi.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIn
}

// Open connects to the panel hardware. It does not touch the display;
// call Init before the first Display or Clear.
func Open(cfg Config) (*EPD, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("panel: host init: %w", err)
	}
	if cfg.Port == "" {
		cfg.Port = "SPI0.0"
	}
	if cfg.DC == "" {
		cfg.DC = "GPIO25"
	}
	if cfg.Reset == "" {
		cfg.Reset = "GPIO17"
	}
	if cfg.Busy == "" {
		cfg.Busy = "GPIO24"
	}
	if cfg.Speed == 0 {
		cfg.Speed = 4 * physic.MegaHertz
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("panel: open %s: %w", cfg.Port, err)
	}
	conn, err := port.Connect(cfg.Speed, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("panel: connect: %w", err)
	}

	p := &EPD{port: port, conn: conn}
	if p.dc = gpioreg.ByName(cfg.DC); p.dc == nil {
		_ = port.Close()
		return nil, fmt.Errorf("panel: no pin %s", cfg.DC)
	}
	if p.rst = gpioreg.ByName(cfg.Reset); p.rst == nil {
		_ = port.Close()
		return nil, fmt.Errorf("panel: no pin %s", cfg.Reset)
	}
	if p.busy = gpioreg.ByName(cfg.Busy); p.busy == nil {
		_ = port.Close()
		return nil, fmt.Errorf("panel: no pin %s", cfg.Busy)
	}
	return p, nil
}

// Init resets the controller and runs the vendor init sequence.
func (p *EPD) Init() error {
	if err := p.reset(); err != nil {
		return err
	}
	if err := p.waitIdle(resetTimeout); err != nil {
		return err
	}

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{cmdCMDH, []byte{0x49, 0x55, 0x20, 0x08, 0x09, 0x18}},
		{cmdPowerSetting, []byte{0x3F}},
		{cmdPanelSetting, []byte{0x5F, 0x69}},
		{cmdPowerOffSeq, []byte{0x00, 0x54, 0x00, 0x44}},
		{0x05, []byte{0x40, 0x1F, 0x1F, 0x2C}},
		{cmdBoosterSoft, []byte{0x6F, 0x1F, 0x17, 0x49}},
		{0x08, []byte{0x6F, 0x1F, 0x1F, 0x22}},
		{cmdPLL, []byte{0x08}},
		{cmdVCOMInterval, []byte{0x3F}},
		{cmdTCON, []byte{0x02, 0x00}},
		{cmdResolution, []byte{0x03, 0x20, 0x01, 0xE0}}, // 800x480
		{cmdVDCS, []byte{0x1E}},
		{0x84, []byte{0x01}},
		{0xE3, []byte{0x2F}},
	}
	for _, s := range steps {
		if err := p.command(s.cmd, s.data...); err != nil {
			return err
		}
	}
	return nil
}

// Display pushes an encoded buffer (see Encode) to the panel and
// triggers a full refresh. Blocks until the refresh completes.
func (p *EPD) Display(buf []byte) error {
	want := Width / 2 * Height
	if len(buf) != want {
		return fmt.Errorf("panel: buffer is %d bytes, want %d", len(buf), want)
	}
	if err := p.command(cmdDataStart); err != nil {
		return err
	}
	if err := p.data(buf); err != nil {
		return err
	}
	return p.refresh()
}

// Clear paints the whole panel white.
func (p *EPD) Clear() error {
	buf := make([]byte, Width/2*Height)
	for i := range buf {
		buf[i] = codeWhite<<4 | codeWhite
	}
	return p.Display(buf)
}

// Sleep puts the controller into deep sleep. A hardware reset (Init)
// is required to wake it.
func (p *EPD) Sleep() error {
	return p.command(cmdDeepSleep, 0xA5)
}

func (p *EPD) Close() error {
	return p.port.Close()
}

func (p *EPD) refresh() error {
	if err := p.command(cmdPowerOn); err != nil {
		return err
	}
	if err := p.waitIdle(resetTimeout); err != nil {
		return err
	}
	if err := p.command(cmdRefresh, 0x00); err != nil {
		return err
	}
	if err := p.waitIdle(refreshTimeout); err != nil {
		return err
	}
	if err := p.command(cmdPowerOff, 0x00); err != nil {
		return err
	}
	return p.waitIdle(resetTimeout)
}

func (p *EPD) reset() error {
	if err := p.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("panel: reset: %w", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := p.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("panel: reset: %w", err)
	}
	time.Sleep(2 * time.Millisecond)
	if err := p.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("panel: reset: %w", err)
	}
	time.Sleep(20 * time.Millisecond)
	return nil
}

// waitIdle blocks until the busy line goes high (controller idle).
func (p *EPD) waitIdle(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for p.busy.Read() == gpio.Low {
		if time.Now().After(deadline) {
			return fmt.Errorf("panel: busy timeout after %v", timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (p *EPD) command(cmd byte, data ...byte) error {
	if err := p.dc.Out(gpio.Low); err != nil {
		return fmt.Errorf("panel: dc: %w", err)
	}
	if err := p.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("panel: command 0x%02X: %w", cmd, err)
	}
	if len(data) > 0 {
		return p.data(data)
	}
	return nil
}

// data writes a payload in spidev-sized chunks.
func (p *EPD) data(buf []byte) error {
	if err := p.dc.Out(gpio.High); err != nil {
		return fmt.Errorf("panel: dc: %w", err)
	}
	const chunk = 4096
	for len(buf) > 0 {
		n := len(buf)
		if n > chunk {
			n = chunk
		}
		if err := p.conn.Tx(buf[:n], nil); err != nil {
			return fmt.Errorf("panel: data: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

// Mock is a Display for development machines without the HAT. Buffers
// are dumped to a file so the rendered output can still be inspected.
type Mock struct {
	// Path receives the last displayed buffer; empty disables dumps.
	Path string
}

func (m *Mock) Init() error {
	log.Println("mock panel initialized")
	return nil
}

func (m *Mock) Display(buf []byte) error {
	if m.Path != "" {
		if err := os.WriteFile(m.Path, buf, 0o644); err != nil {
			return fmt.Errorf("panel: mock dump: %w", err)
		}
		log.Printf("mock panel: buffer written to %s", m.Path)
	} else {
		log.Printf("mock panel: displayed %d bytes", len(buf))
	}
	return nil
}

func (m *Mock) Clear() error {
	log.Println("mock panel cleared")
	return nil
}

func (m *Mock) Sleep() error {
	log.Println("mock panel sleeping")
	return nil
}

func (m *Mock) Close() error { return nil }
