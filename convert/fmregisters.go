package convert

import (
	"github.com/polyzium/s3m-c67-converter/c67"
	"github.com/polyzium/s3m-c67-converter/s3m"
)

// register block indices, D00..D0B
const (
	regModulatorCharacteristics = 0x0
	regCarrierCharacteristics   = 0x1
	regModulatorScaleOutput     = 0x2
	regCarrierScaleOutput       = 0x3
	regModulatorAttackDecay     = 0x4
	regCarrierAttackDecay       = 0x5
	regModulatorSustainRelease  = 0x6
	regCarrierSustainRelease    = 0x7
	regModulatorWaveSelect      = 0x8
	regCarrierWaveSelect        = 0x9
	regFeedbackConnection       = 0xA
)

// the two key scale level bits are stored in reverse order by the player
func swapScaleLevel(scaleOutput uint8) uint8 {
	var scale = scaleOutput >> 6
	var reversed = (scale&1)<<1 | (scale>>1)&1

	return reversed<<6 | scaleOutput&0x3F
}

func convertFMRegisters(instrument *s3m.AdlibInstrument) c67.FMRegisters {
	var registers = instrument.Registers

	return c67.FMRegisters{
		FeedbackConnection:        registers[regFeedbackConnection],
		ModulatorCharacteristics:  registers[regModulatorCharacteristics],
		ModulatorScaleOutputLevel: swapScaleLevel(registers[regModulatorScaleOutput]),
		ModulatorAttackDecay:      registers[regModulatorAttackDecay],
		ModulatorSustainRelease:   registers[regModulatorSustainRelease],
		ModulatorWaveSelect:       registers[regModulatorWaveSelect],
		CarrierCharacteristics:    registers[regCarrierCharacteristics],
		CarrierScaleOutputLevel:   swapScaleLevel(registers[regCarrierScaleOutput]),
		CarrierAttackDecay:        registers[regCarrierAttackDecay],
		CarrierSustainRelease:     registers[regCarrierSustainRelease],
		CarrierWaveSelect:         registers[regCarrierWaveSelect],
	}
}
