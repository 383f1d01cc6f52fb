package model

// All lists every persisted entity, in dependency order, for AutoMigrate
func All() []interface{} {
	return []interface{}{
		&Role{},
		&User{},
		&Tag{},
		&Shelf{},
		&Device{},
		&ReminderEvent{},
		&Question{},
		&Answer{},
		&SurveyResponse{},
		&Setting{},
		&EventSubscription{},
		&BootstrapStatus{},
	}
}
