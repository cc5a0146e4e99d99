package fps

// Opcode is the 10-bit command identifier carried in bits [17:8] of
// the CAN identifier.
type Opcode uint16

const (
	OpGetID Opcode = iota + 1
	OpGetFirmwareVersion
	OpGetStatus
	OpGetActualPosition
	OpGetOffset
	OpSetActualPosition
	OpSetOffset
	OpSetSpeed
	OpSetCurrent
	OpSetHoldingCurrent
	OpHallOn
	OpHallOff
	OpStartDatumCalibration
	OpStartMotorCalibration
	OpStartCoggingCalibration
	OpSaveInternalCalibration
	OpInitializeDatums
	OpGoToAbsolutePosition
	OpGoToRelativePosition
	OpSendTrajectoryDataAlpha
	OpSendTrajectoryDataBeta
	OpSendTrajectoryDataEnd
	OpTrajectoryDataNAK
	OpStartTrajectory
	OpStopTrajectory
	OpSetCurrentPosition
	OpResetMotorController
	OpGetPositionerInfo
	OpSwitchToSafeMode
	OpBootloaderStartFirmwareUpgrade
	OpBootloaderSendFirmwareData
	OpBootloaderFinishFirmwareUpgrade
	OpBootloaderStartReadFirmware
	OpBootloaderGetFirmwareVersion
	OpGetNumberTrajectories
	OpClearMotorCalibration
	OpClearDatumCalibration
	OpClearCoggingCalibration
	OpSetHallDisable
	OpSetPrecisionMoveTime
	OpGetPrecisionMoveTime
)

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "OPCODE_UNKNOWN"
}

var opcodeNames = map[Opcode]string{
	OpGetID:                           "GET_ID",
	OpGetFirmwareVersion:              "GET_FIRMWARE_VERSION",
	OpGetStatus:                       "GET_STATUS",
	OpGetActualPosition:               "GET_ACTUAL_POSITION",
	OpGetOffset:                       "GET_OFFSET",
	OpSetActualPosition:               "SET_ACTUAL_POSITION",
	OpSetOffset:                       "SET_OFFSET",
	OpSetSpeed:                        "SET_SPEED",
	OpSetCurrent:                      "SET_CURRENT",
	OpSetHoldingCurrent:               "SET_HOLDING_CURRENT",
	OpHallOn:                         "HALL_ON",
	OpHallOff:                        "HALL_OFF",
	OpStartDatumCalibration:           "START_DATUM_CALIBRATION",
	OpStartMotorCalibration:           "START_MOTOR_CALIBRATION",
	OpStartCoggingCalibration:         "START_COGGING_CALIBRATION",
	OpSaveInternalCalibration:         "SAVE_INTERNAL_CALIBRATION",
	OpInitializeDatums:                "INITIALIZE_DATUMS",
	OpGoToAbsolutePosition:            "GO_TO_ABSOLUTE_POSITION",
	OpGoToRelativePosition:            "GO_TO_RELATIVE_POSITION",
	OpSendTrajectoryDataAlpha:         "SEND_TRAJECTORY_DATA_ALPHA",
	OpSendTrajectoryDataBeta:          "SEND_TRAJECTORY_DATA_BETA",
	OpSendTrajectoryDataEnd:           "SEND_TRAJECTORY_DATA_END",
	OpTrajectoryDataNAK:               "TRAJECTORY_DATA_NAK",
	OpStartTrajectory:                 "START_TRAJECTORY",
	OpStopTrajectory:                  "STOP_TRAJECTORY",
	OpSetCurrentPosition:              "SET_CURRENT_POSITION",
	OpResetMotorController:            "RESET_MOTOR_CONTROLLER",
	OpGetPositionerInfo:               "GET_POSITIONER_INFO",
	OpSwitchToSafeMode:                "SWITCH_TO_SAFE_MODE",
	OpBootloaderStartFirmwareUpgrade:  "BOOTLOADER_START_FIRMWARE_UPGRADE",
	OpBootloaderSendFirmwareData:      "BOOTLOADER_SEND_FIRMWARE_DATA",
	OpBootloaderFinishFirmwareUpgrade: "BOOTLOADER_FINISH_FIRMWARE_UPGRADE",
	OpBootloaderStartReadFirmware:     "BOOTLOADER_START_READ_FIRMWARE",
	OpBootloaderGetFirmwareVersion:    "BOOTLOADER_GET_FIRMWARE_VERSION",
	OpGetNumberTrajectories:           "GET_NUMBER_TRAJECTORIES",
	OpClearMotorCalibration:           "CLEAR_MOTOR_CALIBRATION",
	OpClearDatumCalibration:           "CLEAR_DATUM_CALIBRATION",
	OpClearCoggingCalibration:         "CLEAR_COGGING_CALIBRATION",
	OpSetHallDisable:                  "SET_HALL_DISABLE",
	OpSetPrecisionMoveTime:            "SET_PRECISION_MOVE_TIME",
	OpGetPrecisionMoveTime:            "GET_PRECISION_MOVE_TIME",
}

// opcodeAttrs describes the broadcast/move/safe attributes of an
// opcode. An opcode absent from this table is assumed to be
// unicast-only, non-move, non-safe.
type opcodeAttrs struct {
	broadcastable bool
	moveCommand   bool
	safe          bool
}

var attrsByOpcode = map[Opcode]opcodeAttrs{
	OpGetID:                   {broadcastable: true, safe: true},
	OpGetFirmwareVersion:      {broadcastable: true, safe: true},
	OpGetStatus:               {broadcastable: true, safe: true},
	OpGetActualPosition:       {broadcastable: true, safe: true},
	OpGetOffset:                {safe: true},
	OpSetActualPosition:       {safe: true},
	OpSetOffset:                {safe: true},
	OpSetSpeed:                 {safe: true},
	OpSetCurrent:               {safe: true},
	OpSetHoldingCurrent:        {safe: true},
	OpHallOn:                  {safe: true},
	OpHallOff:                 {safe: true},
	OpStartDatumCalibration:    {moveCommand: true},
	OpStartMotorCalibration:    {moveCommand: true},
	OpStartCoggingCalibration:  {moveCommand: true},
	OpSaveInternalCalibration:  {safe: true},
	OpInitializeDatums:         {broadcastable: true, moveCommand: true},
	OpGoToAbsolutePosition:     {moveCommand: true},
	OpGoToRelativePosition:     {moveCommand: true},
	OpSendTrajectoryDataAlpha:  {safe: true},
	OpSendTrajectoryDataBeta:   {safe: true},
	OpSendTrajectoryDataEnd:    {safe: true},
	OpStartTrajectory:          {broadcastable: true, moveCommand: true},
	OpStopTrajectory:           {broadcastable: true, safe: true},
	OpGetPositionerInfo:        {broadcastable: true, safe: true},
	OpSwitchToSafeMode:         {safe: true},
}

// Broadcastable reports whether o may be issued with positioner id 0.
func (o Opcode) Broadcastable() bool { return attrsByOpcode[o].broadcastable }

// MoveCommand reports whether o acquires the per-positioner move lock.
func (o Opcode) MoveCommand() bool { return attrsByOpcode[o].moveCommand }

// Safe reports whether o may be interleaved with an in-flight move.
func (o Opcode) Safe() bool { return attrsByOpcode[o].safe }
