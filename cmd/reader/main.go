// command reader is the firmware entry point for the contactless
// door-access reader board: it brings up the RF chip over SPI, wires
// the four cooperating tasks together, and runs until killed.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/fmfi-svt-deadlock/reader-sw/crpm"
	"github.com/fmfi-svt-deadlock/reader-sw/fault"
	"github.com/fmfi-svt-deadlock/reader-sw/pcd"
	"github.com/fmfi-svt-deadlock/reader-sw/reader"
	"github.com/fmfi-svt-deadlock/reader-sw/regio"
	"github.com/fmfi-svt-deadlock/reader-sw/rfchip"
)

func main() {
	serialDev := flag.String("serial", "", "serial device to the access controller")
	spiPort := flag.String("spi", "", "SPI port name (empty: first available)")
	flag.Parse()

	if err := run(*serialDev, *spiPort); err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		os.Exit(2)
	}
}

func run(serialDev, spiPort string) error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	log.Println("reader: starting")

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("reader: %w", err)
	}

	p, err := spireg.Open(spiPort)
	if err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	defer p.Close()
	conn, err := p.Connect(10*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return fmt.Errorf("reader: %w", err)
	}

	drv := rfchip.New(regio.NewSPI(conn), RFChipReset)
	if err := drv.Init(); err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	if err := drv.Start(chipConfig()); err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	// Leave RF off: cardid's own active/poll bookkeeping assumes the
	// chip is in rfchip.StateRfOff right after Start, and only turns it
	// on once the master asks it to poll.

	out, err := newBoardOutputs()
	if err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	if err := PinWatchdog.Out(gpio.Low); err != nil {
		return fmt.Errorf("reader: %w", err)
	}

	serial, err := boardSerial()
	if err != nil {
		log.Printf("reader: reading board serial: %v", err)
	}

	sys := reader.NewSystem(
		pcd.NewAdapter(drv),
		out,
		reader.DefaultOpener(serialDev),
		crpm.NewCBORCodec(),
		&gpioWatchdog{pin: PinWatchdog},
		reader.SysInfo{
			ReaderClass: 1,
			HWModel:     1,
			HWRev:       1,
			Serial:      serial,
			SWVerMajor:  1,
			SWVerMinor:  0,
		},
	)

	stop := make(chan struct{})
	defer fault.Guard(func(s fault.Snapshot) {
		log.Printf("reader: %s", s)
	})()
	sys.Run(stop)
	return nil
}

// chipConfig is the RF chip's tuning table applied at Start, mirroring
// the source's mfrc522_config_t field-for-field (see rfchip.Config's
// doc comment). TxControl and RxGain match the driver's own bring-up
// test config; the four conductance fields are additionally set to
// their maximums here.
func chipConfig() *rfchip.Config {
	return &rfchip.Config{
		TxControl: 0x83,
		RxGain:    rfchip.RxGain38dB,
		TxPowerN:  0xf,
		ModIndexN: 0xf,
		TxPowerP:  0x3f,
		ModIndexP: 0x3f,
		Interrupt: rfchip.InterruptBinding{
			Peripheral: "bcm283x",
			Channel:    0,
			Pin:        RFChipIRQ,
			Reset:      RFChipReset,
		},
	}
}
