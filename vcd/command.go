package vcd

// SignalID identifies one distinct VCD identifier code. Ids are assigned in
// declaration order starting at zero, so they can index dense tables.
type SignalID uint32

// Command is one item of the value change stream that follows the header.
type Command interface {
	isCommand()
}

// Timestamp advances the simulation time.
type Timestamp struct {
	Time uint64
}

// ChangeScalar sets a single bit signal. Bit is one of '0', '1', 'x', 'z'.
type ChangeScalar struct {
	ID  SignalID
	Bit byte
}

// ChangeVector sets a multi bit signal. Bits is most significant bit first,
// lower case, and already extended to the declared width of the signal.
type ChangeVector struct {
	ID   SignalID
	Bits string
}

// ChangeReal sets a real valued signal.
type ChangeReal struct {
	ID    SignalID
	Value float64
}

// ChangeString sets a string valued signal.
type ChangeString struct {
	ID    SignalID
	Value string
}

func (Timestamp) isCommand()    {}
func (ChangeScalar) isCommand() {}
func (ChangeVector) isCommand() {}
func (ChangeReal) isCommand()   {}
func (ChangeString) isCommand() {}
