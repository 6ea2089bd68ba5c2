package brokerauth

// SecurityLevel orders the clearance a caller must hold for an operation.
// Levels compare numerically: a caller at LevelElevated satisfies a
// requirement of LevelStandard but not LevelCritical.
type SecurityLevel uint8

const (
	// LevelPublic is an exported constant or variable used by the mediation pipeline.
	LevelPublic SecurityLevel = iota
	// LevelStandard is an exported constant or variable used by the mediation pipeline.
	LevelStandard
	// LevelElevated is an exported constant or variable used by the mediation pipeline.
	LevelElevated
	// LevelCritical is an exported constant or variable used by the mediation pipeline.
	LevelCritical
)

// String renders the level for audit records and logs.
func (l SecurityLevel) String() string {
	switch l {
	case LevelPublic:
		return "PUBLIC"
	case LevelStandard:
		return "STANDARD"
	case LevelElevated:
		return "ELEVATED"
	case LevelCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}
