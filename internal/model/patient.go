package model

import "time"

type Patient struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type PatientList struct {
	Patients []Patient `json:"patients"`
}

type DashboardCounts struct {
	Users         int `json:"users"`
	PreRegistered int `json:"pre_registered_users"`
	Patients      int `json:"patients"`
}
