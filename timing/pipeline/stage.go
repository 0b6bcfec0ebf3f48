package pipeline

// Stage identifies one of the eight pipeline stages.
type Stage int

// Pipeline stages in program order.
const (
	StageIF Stage = iota // instruction fetch, first half
	StageIS              // instruction fetch, second half (issue)
	StageID              // decode
	StageRF              // register fetch and interlock check
	StageEX              // execute, branch resolution
	StageDF              // data fetch, first half of data access
	StageDS              // data store, second half of data access
	StageWB              // write back
	NumStages
)

var stageNames = [NumStages]string{"IF", "IS", "ID", "RF", "EX", "DF", "DS", "WB"}

func (s Stage) String() string {
	if s >= 0 && s < NumStages {
		return stageNames[s]
	}
	return "??"
}

// LatchID identifies a pipeline register between two adjacent stages.
// Latch i sits between Stage(i) and Stage(i+1).
type LatchID int

// Pipeline registers.
const (
	LatchIFIS LatchID = iota
	LatchISID
	LatchIDRF
	LatchRFEX
	LatchEXDF
	LatchDFDS
	LatchDSWB
	NumLatches
)

func (l LatchID) String() string {
	if l >= 0 && l < NumLatches {
		return stageNames[l] + "/" + stageNames[l+1]
	}
	return "??/??"
}

// StallKind categorises a stall cycle.
type StallKind int

// Stall categories.
const (
	// StallLoads is a load-use interlock.
	StallLoads StallKind = iota
	// StallBranches is a cycle with fetch held behind an unresolved branch.
	StallBranches
	// StallOther is a cycle with the pipe frozen behind a multi-cycle execute.
	StallOther
	NumStallKinds
)

var stallKindNames = [NumStallKinds]string{"Loads", "Branches", "Other"}

func (k StallKind) String() string {
	if k >= 0 && k < NumStallKinds {
		return stallKindNames[k]
	}
	return "Unknown"
}

// ForwardPath names a bypass from a later pipeline register back to an
// earlier one.
type ForwardPath int

// Forwarding paths. Paths into RF/EX feed the operands of the instruction in
// EX. Paths into EX/DF feed the store data of a store in DF.
const (
	ForwardEXDFToRFEX ForwardPath = iota
	ForwardDFDSToEXDF
	ForwardDFDSToRFEX
	ForwardDSWBToEXDF
	ForwardDSWBToRFEX
	NumForwardPaths
)

var forwardPathNames = [NumForwardPaths]string{
	"EX/DF -> RF/EX",
	"DF/DS -> EX/DF",
	"DF/DS -> RF/EX",
	"DS/WB -> EX/DF",
	"DS/WB -> RF/EX",
}

func (f ForwardPath) String() string {
	if f >= 0 && f < NumForwardPaths {
		return forwardPathNames[f]
	}
	return "unknown path"
}

// forwardPathInto returns the path from source latch src into the operand
// latch dst.
func forwardPathInto(src, dst LatchID) ForwardPath {
	switch {
	case src == LatchEXDF && dst == LatchRFEX:
		return ForwardEXDFToRFEX
	case src == LatchDFDS && dst == LatchRFEX:
		return ForwardDFDSToRFEX
	case src == LatchDSWB && dst == LatchRFEX:
		return ForwardDSWBToRFEX
	case src == LatchDFDS && dst == LatchEXDF:
		return ForwardDFDSToEXDF
	case src == LatchDSWB && dst == LatchEXDF:
		return ForwardDSWBToEXDF
	default:
		panic("pipeline: no forwarding path from " + src.String() + " to " + dst.String())
	}
}
