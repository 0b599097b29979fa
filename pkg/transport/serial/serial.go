// Package serial opens physical serial ports as comm.Transport.
package serial

import (
	"fmt"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	"github.com/JFDuval/flexsea-v2/pkg/transport/stream"
)

// DefaultBaudRate is the baud rate of FlexSEA peripherals.
const DefaultBaudRate = 115200

// readTimeout bounds how long the reader goroutine ignores Close.
const readTimeout = 50 * time.Millisecond

// Port is an open serial port.
type Port struct {
	*stream.Transport
	port serial.Port
	name string
}

// Open opens the port in 8N1 mode.
func Open(name string, baudRate int) (*Port, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err = port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial port %s: %w", name, err)
	}
	// old bytes would only desynchronize the first exchange
	if err = port.ResetInputBuffer(); err != nil {
		glog.Warningf("serial port %s: flush input: %v", name, err)
	}
	glog.Infof("serial port %s opened at %d baud", name, baudRate)
	return &Port{Transport: stream.New(port), port: port, name: name}, nil
}

// Name returns the name of the port.
func (p *Port) Name() string {
	return p.name
}

// ResetBuffers drops pending input and output, in the driver and in memory.
func (p *Port) ResetBuffers() error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return err
	}
	if err := p.port.ResetOutputBuffer(); err != nil {
		return err
	}
	return p.Transport.ResetBuffers()
}

// Ports lists the serial ports of the host.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
