package rfchip

import "periph.io/x/conn/v3/gpio"

// DriverInput selects the source feeding the transmitter's driver stage.
type DriverInput int

const (
	DriverInputThreeState DriverInput = iota
	DriverInputEncoder
	DriverInputMFIN
	DriverInputHigh
)

// MFOut selects what the MFOUT pin reflects.
type MFOut int

const (
	MFOutThreeState MFOut = iota
	MFOutLow
	MFOutHigh
	MFOutTestBus
	MFOutEncoder
	MFOutPreMiller
	MFOutPostManchester
)

// CLUARTInput selects the contactless-UART input source.
type CLUARTInput int

const (
	CLUARTInputLow CLUARTInput = iota
	CLUARTInputManchesterMFIN
	CLUARTInputAnalog
	CLUARTInputNrzMFIN
)

// RxGain is the receiver gain in dB; only these six values are valid.
type RxGain int

const (
	RxGain18dB RxGain = 18
	RxGain23dB RxGain = 23
	RxGain33dB RxGain = 33
	RxGain38dB RxGain = 38
	RxGain43dB RxGain = 43
	RxGain48dB RxGain = 48
)

// regValue maps the gain to the RFCfgReg RxGain field (bits 6..4),
// following the chip's documented monotonic encoding.
func (g RxGain) regValue() byte {
	switch g {
	case RxGain18dB:
		return 0b001
	case RxGain23dB:
		return 0b010
	case RxGain33dB:
		return 0b100
	case RxGain38dB:
		return 0b101
	case RxGain43dB:
		return 0b110
	case RxGain48dB:
		return 0b111
	default:
		return 0b100
	}
}

// InterruptBinding identifies the external-interrupt channel the IRQ pin
// is wired to, and the reset line, mirroring the C source's
// (peripheral, channel, reset GPIO) tuple. Peripheral/Channel are used
// purely to key the driver registry (see registry.go); Pin and Reset
// carry the actual periph.io handles.
type InterruptBinding struct {
	Peripheral string
	Channel    int
	Pin        gpio.PinIO
	Reset      gpio.PinIO
}

// Config is the immutable set of tuning knobs applied to the RF chip on
// start and after every self-test. See spec §3/§4.2 and the DESIGN NOTES
// "configuration carried by a long record of optional-looking fields"
// remediation: every field here maps to one documented register bitfield.
type Config struct {
	DriverInput      DriverInput
	MFOut            MFOut
	CLUARTInput      CLUARTInput
	MFINPolarity     bool
	InvertModulation bool

	// TxControl is the raw image applied to TxControlReg, aside from the
	// two RF-enable bits which are owned by ActivateRF/DeactivateRF.
	TxControl byte

	RxSignalStrength uint8 // 4 bits, [0,15]
	RxCollisionLevel uint8 // 3 bits, [0,7]

	// Demod is the raw image applied to DemodReg.
	Demod byte

	RxGain RxGain

	TxPowerN  uint8 // 4 bits
	ModIndexN uint8 // 4 bits
	TxPowerP  uint8 // 6 bits
	ModIndexP uint8 // 6 bits

	Interrupt InterruptBinding
}

// reconfigure applies every register/bit-programming entry the config
// table covers. It does not touch TxControlReg's RF-enable bits (owned by
// ActivateRF/DeactivateRF) nor the command/state machinery.
func (d *Driver) reconfigure(cfg *Config) error {
	mode := byte(0)
	if cfg.MFINPolarity {
		mode |= modeMFINPolarity
	}
	if err := d.bus.WriteMasked(regMode, modeMFINPolarity, mode); err != nil {
		return err
	}

	txMode := byte(0)
	if cfg.InvertModulation {
		txMode |= txModeInvMod
	}
	if err := d.bus.WriteMasked(regTxMode, txModeInvMod, txMode); err != nil {
		return err
	}

	if err := d.bus.Write(regTxControl, cfg.TxControl&^(txControlTx1RFEn|txControlTx2RFEn)); err != nil {
		return err
	}

	driverInputBits := byte(cfg.DriverInput) & 0b11
	mfoutBits := byte(cfg.MFOut) & 0b111
	if err := d.bus.WriteMasked(regTxSel, 0b11<<4, driverInputBits<<4); err != nil {
		return err
	}
	if err := d.bus.WriteMasked(regTxSel, 0b111, mfoutBits); err != nil {
		return err
	}
	if err := d.bus.WriteMasked(regRxSel, 0b11<<6, byte(cfg.CLUARTInput)<<6); err != nil {
		return err
	}

	if err := d.bus.WriteMasked(regRxThreshold, 0b1111<<4, (cfg.RxSignalStrength&0xF)<<4); err != nil {
		return err
	}
	if err := d.bus.WriteMasked(regColl, 0b111, cfg.RxCollisionLevel&0b111); err != nil {
		return err
	}

	if err := d.bus.Write(regDemod, cfg.Demod); err != nil {
		return err
	}

	if err := d.bus.WriteMasked(regRFCfg, 0b111<<4, cfg.RxGain.regValue()<<4); err != nil {
		return err
	}

	if err := d.bus.WriteMasked(regGsN, 0b1111<<4, (cfg.TxPowerN&0xF)<<4); err != nil {
		return err
	}
	if err := d.bus.WriteMasked(regGsN, 0b1111, cfg.ModIndexN&0xF); err != nil {
		return err
	}
	if err := d.bus.WriteMasked(regCWGsP, 0b0011_1111, cfg.TxPowerP&0x3F); err != nil {
		return err
	}
	if err := d.bus.WriteMasked(regModGsP, 0b0011_1111, cfg.ModIndexP&0x3F); err != nil {
		return err
	}

	// Latch the collision position at collision time rather than after
	// the values received following it.
	if err := d.bus.ClearBits(regColl, collValuesAfterColl); err != nil {
		return err
	}
	return nil
}
