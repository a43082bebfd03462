package protocol

import "fmt"

// Data presentation bytes
const (
	SOH byte = 0x01 // start of header
	STX byte = 0x02 // start of text
	ETX byte = 0x03 // end of text
	EOT byte = 0x04 // end of transmission
	ACK byte = 0x06 // positive link acknowledgement
	NAK byte = 0x15 // negative link acknowledgement
)

// MICode is the message identifier carried after STX in every data frame.
type MICode byte

// Message identifiers
const (
	MIAckMessage                        MICode = 0x01
	MIStartSession                      MICode = 0x02
	MIPasswordSeed                      MICode = 0x03
	MIPassword                          MICode = 0x04
	MIHeartbeatPoll                     MICode = 0x05
	MISignStatusReply                   MICode = 0x06
	MIEndSession                        MICode = 0x07
	MISystemReset                       MICode = 0x08
	MIUpdateTime                        MICode = 0x09
	MISignSetTextFrame                  MICode = 0x0A
	MISignSetGraphicFrame               MICode = 0x0B
	MISignSetMessage                    MICode = 0x0C
	MISignSetPlan                       MICode = 0x0D
	MISignDisplayFrame                  MICode = 0x0E
	MISignDisplayMessage                MICode = 0x0F
	MIEnablePlan                        MICode = 0x10
	MIDisablePlan                       MICode = 0x11
	MIRequestEnabledPlans               MICode = 0x12
	MIReportEnabledPlans                MICode = 0x13
	MISignSetDimmingLevel               MICode = 0x14
	MIPowerOnOff                        MICode = 0x15
	MIDisableEnableDevice               MICode = 0x16
	MISignRequestStoredFrameMessagePlan MICode = 0x17
	MIRetrieveFaultLog                  MICode = 0x18
	MIFaultLogReply                     MICode = 0x19
	MIResetFaultLog                     MICode = 0x1A
	MISignExtendedStatusRequest         MICode = 0x1B
	MISignExtendedStatusReply           MICode = 0x1C
	MISignSetHighResGraphicsFrame       MICode = 0x1D
	MISignConfigurationRequest          MICode = 0x21
	MISignConfigurationReply            MICode = 0x22
	MISignDisplayAtomicFrames           MICode = 0x2B

	// MIRejectMessage shares its value with MIPowerOnOff. Controllers never
	// originate a power command, so inbound 0x15 is always a reject.
	MIRejectMessage MICode = 0x15
)

// HAR and environmental message families. Declared for logging only.
const (
	MIHARStatusReply                    MICode = 0x40
	MIHARSetVoiceDataIncomplete         MICode = 0x41
	MIHARSetVoiceDataComplete           MICode = 0x42
	MIHARSetStrategy                    MICode = 0x43
	MIHARActivateStrategy               MICode = 0x44
	MIHARSetPlan                        MICode = 0x45
	MIHARRequestStoredVoiceStrategyPlan MICode = 0x46
	MIHARSetVoiceDataAck                MICode = 0x47
	MIHARSetVoiceDataNak                MICode = 0x48
	MIEnvironmentalWeatherStatusReply   MICode = 0x80
	MIRequestEnvironmentalWeatherValues MICode = 0x81
	MIEnvironmentalWeatherValues        MICode = 0x82
	MIEnvironmentalThresholdDefinition  MICode = 0x83
	MIRequestThresholdDefinition        MICode = 0x84
	MIRequestEnvironmentalEventLog      MICode = 0x85
	MIEnvironmentalEventLogReply        MICode = 0x86
	MIResetEnvironmentalEventLog        MICode = 0x87
)

var miNames = map[MICode]string{
	MIAckMessage:                        "AckMessage",
	MIStartSession:                      "StartSession",
	MIPasswordSeed:                      "PasswordSeed",
	MIPassword:                          "Password",
	MIHeartbeatPoll:                     "HeartbeatPoll",
	MISignStatusReply:                   "SignStatusReply",
	MIEndSession:                        "EndSession",
	MISystemReset:                       "SystemReset",
	MIUpdateTime:                        "UpdateTime",
	MISignSetTextFrame:                  "SignSetTextFrame",
	MISignSetGraphicFrame:               "SignSetGraphicFrame",
	MISignSetMessage:                    "SignSetMessage",
	MISignSetPlan:                       "SignSetPlan",
	MISignDisplayFrame:                  "SignDisplayFrame",
	MISignDisplayMessage:                "SignDisplayMessage",
	MIEnablePlan:                        "EnablePlan",
	MIDisablePlan:                       "DisablePlan",
	MIRequestEnabledPlans:               "RequestEnabledPlans",
	MIReportEnabledPlans:                "ReportEnabledPlans",
	MISignSetDimmingLevel:               "SignSetDimmingLevel",
	MIRejectMessage:                     "RejectMessage/PowerOnOff",
	MIDisableEnableDevice:               "DisableEnableDevice",
	MISignRequestStoredFrameMessagePlan: "SignRequestStoredFrameMessagePlan",
	MIRetrieveFaultLog:                  "RetrieveFaultLog",
	MIFaultLogReply:                     "FaultLogReply",
	MIResetFaultLog:                     "ResetFaultLog",
	MISignExtendedStatusRequest:         "SignExtendedStatusRequest",
	MISignExtendedStatusReply:           "SignExtendedStatusReply",
	MISignSetHighResGraphicsFrame:       "SignSetHighResGraphicsFrame",
	MISignConfigurationRequest:          "SignConfigurationRequest",
	MISignConfigurationReply:            "SignConfigurationReply",
	MISignDisplayAtomicFrames:           "SignDisplayAtomicFrames",
	MIHARStatusReply:                    "HARStatusReply",
	MIEnvironmentalWeatherStatusReply:   "EnvironmentalWeatherStatusReply",
}

// String returns the message name, or a hex rendering for unknown codes.
func (mi MICode) String() string {
	if name, ok := miNames[mi]; ok {
		return name
	}
	return fmt.Sprintf("MI(0x%02X)", byte(mi))
}

// MarkerName renders a control byte the way protocol traces show it.
func MarkerName(b byte) string {
	switch b {
	case SOH:
		return "<SOH>"
	case STX:
		return "<STX>"
	case ETX:
		return "<ETX>"
	case EOT:
		return "<EOT>"
	case ACK:
		return "<ACK>"
	case NAK:
		return "<NAK>"
	default:
		return fmt.Sprintf("<0x%02X>", b)
	}
}

// Printable renders a raw frame with control bytes replaced by their names.
func Printable(raw []byte) string {
	out := make([]byte, 0, len(raw)+16)
	for _, b := range raw {
		if b < 0x20 {
			out = append(out, MarkerName(b)...)
			continue
		}
		out = append(out, b)
	}
	return string(out)
}
