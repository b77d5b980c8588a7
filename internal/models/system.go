package models

// SystemStatus is the hardware state reported by the institute inventory.
type SystemStatus string

const (
	SystemStatusAvailable   SystemStatus = "AVAILABLE"
	SystemStatusActive      SystemStatus = "ACTIVE"
	SystemStatusOccupied    SystemStatus = "OCCUPIED"
	SystemStatusOffline     SystemStatus = "OFFLINE"
	SystemStatusMaintenance SystemStatus = "MAINTENANCE"
)

// System is a workstation at an institute where a student sits an exam.
type System struct {
	ID          string       `db:"id" json:"id"`
	InstituteID string       `db:"institute_id" json:"instituteId"`
	Name        string       `db:"name" json:"name"`
	Status      SystemStatus `db:"status" json:"status"`
}

// HardwareUp reports whether the inventory marks the system usable. Busy state is derived separately.
func (s System) HardwareUp() bool {
	return s.Status == SystemStatusAvailable || s.Status == SystemStatusActive
}
