package models

// All lists every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Role{},
		&Department{},
		&DepartmentUnit{},
		&User{},
		&ActionLog{},
		&AssignmentHistory{},
		&ApprovalRecord{},
		&Comment{},
		&AuditEntry{},
		&Attachment{},
		&Notification{},
	}
}
