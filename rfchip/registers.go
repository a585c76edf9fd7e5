package rfchip

// Register addresses, from the six-bit address space shared by the RF
// chip family this driver targets (MFRC522-compatible register map).
const (
	regCommand    = 0x01
	regComIEn     = 0x02
	regDivIEn     = 0x03
	regComIrq     = 0x04
	regDivIrq     = 0x05
	regError      = 0x06
	regStatus1    = 0x07
	regStatus2    = 0x08
	regFIFOData   = 0x09
	regFIFOLevel  = 0x0A
	regWaterLevel = 0x0B
	regControl    = 0x0C
	regBitFraming = 0x0D
	regColl       = 0x0E

	regMode        = 0x11
	regTxMode      = 0x12
	regRxMode      = 0x13
	regTxControl   = 0x14
	regTxAuto      = 0x15
	regTxSel       = 0x16
	regRxSel       = 0x17
	regRxThreshold = 0x18
	regDemod       = 0x19
	regMifare      = 0x1C
	regSerialSpeed = 0x1F

	regCRCResultM = 0x21
	regCRCResultL = 0x22
	regModWidth   = 0x24
	regRFCfg      = 0x26
	regGsN        = 0x27
	regCWGsP      = 0x28
	regModGsP     = 0x29
	regTMode      = 0x2A
	regTPrescaler = 0x2B
	regTReloadH   = 0x2C
	regTReloadL   = 0x2D

	regAutoTest = 0x36
	regVersion  = 0x37
)

// Command register opcodes.
const (
	cmdIdle        = 0x00
	cmdMem         = 0x01
	cmdCalcCRC     = 0x03
	cmdTransceive  = 0x0C
	cmdSoftReset   = 0x0F
)

// ComIrq / ComIEn bits.
const (
	irqTimer = 1 << 0
	irqErr   = 1 << 1
	irqIdle  = 1 << 4
	irqRx    = 1 << 5
	irqTx    = 1 << 6
	irqSet1  = 1 << 7 // reserved; read-only, always 1
)

// ErrorReg bits.
const (
	errProtocol     = 1 << 0
	errParity       = 1 << 1
	errCRC          = 1 << 2
	errCollision    = 1 << 3
	errBufferOvfl   = 1 << 4
	errTemp         = 1 << 6
	errWrErr        = 1 << 7
)

// CollReg bits.
const (
	collPosNotValid = 1 << 5
	collValuesAfterColl = 1 << 7
)

// BitFramingReg layout.
const (
	bitFramingStartSend = 1 << 7
)

// TxControlReg bits.
const (
	txControlTx1RFEn = 1 << 0
	txControlTx2RFEn = 1 << 1
)

// ModeReg bits touched by the config table.
const (
	modeMFINPolarity = 1 << 3
)

// TxModeReg / RxModeReg bits.
const (
	txModeInvMod = 1 << 3
	txModeCRCEn  = 1 << 7
	rxModeCRCEn  = 1 << 7
)
