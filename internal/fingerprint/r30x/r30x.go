// Package r30x drives an R30x-class optical fingerprint module over a serial
// link. The module owns the template store; the terminal only issues the
// capture/extract/search/model/store commands and maps the module's
// confirmation codes onto the sensor error set.
package r30x

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mvaldes-ph/attendance-terminal/internal/fingerprint"
	"go.bug.st/serial"
)

const (
	cmdGenImg      = 0x01
	cmdImg2Tz      = 0x02
	cmdSearch      = 0x04
	cmdRegModel    = 0x05
	cmdStore       = 0x06
	cmdLoadChar    = 0x07
	cmdDeleteChar  = 0x0C
	cmdVerifyPwd   = 0x13
	cmdTemplateNum = 0x1D

	codeOK           = 0x00
	codeNoFinger     = 0x02
	codeCaptureFail  = 0x03
	codeTooMessy     = 0x06
	codeTooFewPoints = 0x07
	codeMismatch     = 0x08
	codeNoMatch      = 0x09
	codeCombineFail  = 0x0A
	codeBadLocation  = 0x0B
	codeReadTemplate = 0x0C
	codeFlashError   = 0x18
)

var _ fingerprint.Sensor = &Device{}

type Device struct {
	port   io.ReadWriteCloser
	logger *slog.Logger
}

// Open connects to the module on the given serial port.
func Open(portName string, baudRate int, logger *slog.Logger) (*Device, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: %w", err)
	}
	if err = port.SetReadTimeout(time.Second); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("serial: %w", err)
	}
	return New(port, logger), nil
}

// New wraps an already-open transport. Used by tests with an in-memory pipe.
func New(port io.ReadWriteCloser, logger *slog.Logger) *Device {
	return &Device{port: port, logger: logger}
}

func (d *Device) Close() error {
	return d.port.Close()
}

// command sends one command packet and waits for the module's ack. It returns
// the data following the confirmation code; a non-zero confirmation code is
// returned as the matching sensor error.
func (d *Device) command(ctx context.Context, cmd byte, args ...byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, err := buildFrame(pidCommand, append([]byte{cmd}, args...))
	if err != nil {
		return nil, err
	}
	if _, err = d.port.Write(frame); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	pid, payload, err := parseFrame(d.port)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if pid != pidAck || len(payload) < 1 {
		return nil, fmt.Errorf("%w: unexpected reply packet %#x", errBadFrame, pid)
	}

	code := payload[0]
	d.logger.Debug("command completed", slog.Int("cmd", int(cmd)), slog.Int("code", int(code)))
	if err = confirmationError(code); err != nil {
		return nil, err
	}
	return payload[1:], nil
}

func confirmationError(code byte) error {
	switch code {
	case codeOK:
		return nil
	case codeNoFinger:
		return fingerprint.ErrNoFinger
	case codeCaptureFail, codeTooMessy, codeTooFewPoints:
		return fingerprint.ErrBadImage
	case codeNoMatch:
		return fingerprint.ErrNoMatch
	case codeMismatch, codeCombineFail:
		return fingerprint.ErrMismatch
	case codeBadLocation, codeReadTemplate:
		return fingerprint.ErrBadLocation
	case codeFlashError:
		return fingerprint.ErrStorage
	default:
		return fmt.Errorf("confirmation code %#x", code)
	}
}

func (d *Device) Handshake(ctx context.Context) error {
	_, err := d.command(ctx, cmdVerifyPwd, 0, 0, 0, 0)
	return err
}

func (d *Device) Capture(ctx context.Context) error {
	_, err := d.command(ctx, cmdGenImg)
	return err
}

func (d *Device) Extract(ctx context.Context, buffer fingerprint.Buffer) error {
	_, err := d.command(ctx, cmdImg2Tz, byte(buffer))
	return err
}

func (d *Device) Search(ctx context.Context) (int, error) {
	// search the whole template library against buffer 1
	data, err := d.command(ctx, cmdSearch, byte(fingerprint.Buffer1),
		0x00, 0x00, byte(fingerprint.MaxID>>8), byte(fingerprint.MaxID&0xFF))
	if err != nil {
		return 0, err
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: short search reply", errBadFrame)
	}
	return int(data[0])<<8 | int(data[1]), nil
}

func (d *Device) CreateModel(ctx context.Context) error {
	_, err := d.command(ctx, cmdRegModel)
	return err
}

func (d *Device) Store(ctx context.Context, id int) error {
	err := d.storeAt(ctx, id)
	if errors.Is(err, fingerprint.ErrBadLocation) {
		// flash pages exist but the id does not: treat as a storage failure,
		// the id was validated before enrollment started
		return fingerprint.ErrStorage
	}
	return err
}

func (d *Device) storeAt(ctx context.Context, id int) error {
	_, err := d.command(ctx, cmdStore, byte(fingerprint.Buffer1), byte(id>>8), byte(id&0xFF))
	return err
}

func (d *Device) Delete(ctx context.Context, id int) error {
	_, err := d.command(ctx, cmdDeleteChar, byte(id>>8), byte(id&0xFF), 0x00, 0x01)
	return err
}

func (d *Device) Exists(ctx context.Context, id int) (bool, error) {
	_, err := d.command(ctx, cmdLoadChar, byte(fingerprint.Buffer2), byte(id>>8), byte(id&0xFF))
	if errors.Is(err, fingerprint.ErrBadLocation) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *Device) Count(ctx context.Context) (int, error) {
	data, err := d.command(ctx, cmdTemplateNum)
	if err != nil {
		return 0, err
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: short template count reply", errBadFrame)
	}
	return int(data[0])<<8 | int(data[1]), nil
}
