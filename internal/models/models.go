package models

import (
	"time"
)

type Account struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"                 json:"id"`
	FirstName    string    `gorm:"size:30;not null"                         json:"first_name"`
	LastName     string    `gorm:"size:30"                                  json:"last_name,omitempty"`
	Username     string    `gorm:"size:50;not null;uniqueIndex:idx_accounts_username"  json:"username"`
	Email        string    `gorm:"size:150;not null;uniqueIndex:idx_accounts_email"    json:"email"`
	PasswordHash string    `gorm:"size:255;not null"                        json:"-"`
	IsAdmin      bool      `gorm:"not null;default:false"                   json:"is_admin"`
	CreatedAt    time.Time `                                                json:"created_at"`
}

// RevokedToken shadows every token carrying JTI until ExpiresAt, after which
// the token is rejected on expiry alone and the row may be pruned.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey"                              json:"id"`
	JTI       string    `gorm:"size:64;not null;uniqueIndex"            json:"jti"`
	TokenType string    `gorm:"size:16;not null"                        json:"token_type"`
	ExpiresAt time.Time `gorm:"index;not null"                          json:"expires_at"`
	RevokedAt time.Time `gorm:"not null"                                json:"revoked_at"`
}

type UserInfo struct {
	ID               uint    `gorm:"primaryKey"                 json:"user_info_id"`
	UserID           uint    `gorm:"uniqueIndex;not null"       json:"-"`
	Age              int     `gorm:"default:0"                  json:"age"                validate:"gte=0,lte=150"`
	Gender           string  `gorm:"size:10"                    json:"gender"             validate:"max=10"`
	WeightLbs        float64 `                                  json:"weight_lbs"         validate:"gte=0"`
	HeightFt         int     `                                  json:"height_ft"          validate:"gte=0,lte=9"`
	HeightIn         int     `                                  json:"height_in"          validate:"gte=0,lte=11"`
	CurrentDiagnoses string  `gorm:"type:text"                  json:"current_diagnoses"`
	MedicalHistory   string  `gorm:"type:text"                  json:"medical_history"`
	Insurance        string  `gorm:"type:text"                  json:"insurance"`
}

type Symptom struct {
	ID            uint      `gorm:"primaryKey"           json:"symptom_id"`
	UserID        uint      `gorm:"index;not null"       json:"-"`
	Severity      int       `gorm:"default:0"            json:"severity"        validate:"gte=0,lte=10"`
	TypeOfSymptom string    `gorm:"size:100"             json:"type_of_symptom" validate:"max=100"`
	WeightLbs     float64   `                            json:"weight_lbs"`
	Notes         string    `gorm:"type:text"            json:"notes"`
	RecordedOn    time.Time `gorm:"index"                json:"recorded_on"`
}

type FoodLog struct {
	ID            uint      `gorm:"primaryKey"           json:"foodlog_id"`
	UserID        uint      `gorm:"index;not null"       json:"-"`
	Breakfast     string    `gorm:"size:100"             json:"breakfast"       validate:"max=100"`
	Lunch         string    `gorm:"size:100"             json:"lunch"           validate:"max=100"`
	Dinner        string    `gorm:"size:100"             json:"dinner"          validate:"max=100"`
	Notes         string    `gorm:"type:text"            json:"notes"`
	TotalCalories float64   `gorm:"default:0"            json:"total_calories"  validate:"gte=0"`
	RecordedOn    time.Time `gorm:"index"                json:"recorded_on"`
}

type Lab struct {
	ID                uint      `gorm:"primaryKey"      json:"lab_id"`
	UserID            uint      `gorm:"index;not null"  json:"-"`
	SystolicPressure  int       `gorm:"default:0"       json:"systolic_pressure"  validate:"gte=0,lte=300"`
	DiastolicPressure int       `gorm:"default:0"       json:"diastolic_pressure" validate:"gte=0,lte=300"`
	RBCCount          *float64  `                       json:"rbc_count"`
	RecordedOn        time.Time `gorm:"index"           json:"recorded_on"`
}

type Treatment struct {
	ID            uint       `gorm:"primaryKey"      json:"treatment_id"`
	UserID        uint       `gorm:"index;not null"  json:"-"`
	TreatmentName string     `gorm:"size:100"        json:"treatment_name" validate:"required,max=100"`
	ScheduledOn   *time.Time `gorm:"index"           json:"scheduled_on"`
	Notes         string     `gorm:"type:text"       json:"notes"`
	IsCompleted   bool       `gorm:"default:false"   json:"is_completed"`
}

// All lists every table owned by the application, in AutoMigrate order.
func All() []any {
	return []any{
		&Account{},
		&RevokedToken{},
		&UserInfo{},
		&Symptom{},
		&FoodLog{},
		&Lab{},
		&Treatment{},
	}
}
