package convert

import (
	"fmt"

	"github.com/polyzium/s3m-c67-converter/s3m"
)

// Warning is a non fatal conversion problem. The offending entity or event
// is dropped and conversion continues.
type Warning interface {
	error
	isWarning()
}

type Resource int

const (
	ResourcePCMChannel Resource = iota
	ResourcePCMInstrument
	ResourceFMInstrument
	ResourcePattern
	ResourceOrder
)

var resourceNames = map[Resource]string{
	ResourcePCMChannel:    "PCM channels",
	ResourcePCMInstrument: "PCM instruments",
	ResourceFMInstrument:  "FM instruments",
	ResourcePattern:       "patterns",
	ResourceOrder:         "orders",
}

func (resource Resource) String() string {
	return resourceNames[resource]
}

// CapacityExceededWarning is raised once for every source entity that does
// not fit in the target format.
type CapacityExceededWarning struct {
	Resource Resource
	Limit    int
	// index of the discarded entity in the source module, 0 based
	SourceIndex int
}

func (warning *CapacityExceededWarning) Error() string {
	return fmt.Sprintf("more than %d %s, discarding source entry %d", warning.Limit, warning.Resource, warning.SourceIndex)
}

func (warning *CapacityExceededWarning) isWarning() {}

type UnresolvedReason int

const (
	// the PCM channel did not get a target channel
	UnmappedChannel UnresolvedReason = iota
	// the instrument did not get a target slot
	UnmappedInstrument
	// the instrument number is 0 or past the end of the instrument list
	MissingInstrument
	// FM percussion channels have no melodic target voice
	PercussionChannel
	// an FM instrument played on a PCM channel
	ChannelKindMismatch
)

var unresolvedReasonNames = map[UnresolvedReason]string{
	UnmappedChannel:     "channel is not mapped",
	UnmappedInstrument:  "instrument is not mapped",
	MissingInstrument:   "instrument does not exist",
	PercussionChannel:   "percussion channel",
	ChannelKindMismatch: "FM instrument on a PCM channel",
}

func (reason UnresolvedReason) String() string {
	return unresolvedReasonNames[reason]
}

// UnresolvedReferenceWarning is raised when a single note or volume event is
// dropped because its channel or instrument has no place in the target.
type UnresolvedReferenceWarning struct {
	Pattern    int
	Row        int
	Column     int
	Channel    s3m.ChannelSetting
	Instrument uint8
	Reason     UnresolvedReason
}

func (warning *UnresolvedReferenceWarning) Error() string {
	var subject string

	switch warning.Reason {
	case UnmappedInstrument, MissingInstrument:
		subject = fmt.Sprintf("instrument %d", warning.Instrument)
	default:
		subject = fmt.Sprintf("channel %s", warning.Channel)
	}

	return fmt.Sprintf("pattern %d row %d: discarding event in %s: %s", warning.Pattern, warning.Row, subject, warning.Reason)
}

func (warning *UnresolvedReferenceWarning) isWarning() {}
