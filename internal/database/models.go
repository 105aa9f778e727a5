package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidReference is returned when a row points at a parent that does
// not exist.
var ErrInvalidReference = errors.New("referenced row does not exist")

type Victim struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name        string     `json:"name" validate:"required,max=200"`
	Email       string     `json:"email" validate:"omitempty,email"`
	Phone       string     `json:"phone" validate:"max=40"`
	Address     string     `json:"address"`
	DateOfBirth *time.Time `json:"dateOfBirth"`
	Gender      string     `json:"gender" validate:"max=40"`
	Status      string     `json:"status"`
	CasesCount  int        `json:"casesCount"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Case struct {
	ID            int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title         string     `json:"title" validate:"required,max=200"`
	Status        string     `json:"status"`
	Type          string     `json:"type" validate:"max=60"`
	Description   string     `json:"description"`
	VictimID      *int64     `json:"victimId"`
	AssignedStaff string     `json:"assignedStaff" validate:"max=120"`
	OpenDate      *time.Time `json:"openDate"`
	LastUpdated   time.Time  `json:"lastUpdated" gorm:"autoUpdateTime"`

	previousVictimID *int64
}

type Doctor struct {
	ID        int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name      string `json:"name" validate:"required,max=200"`
	Specialty string `json:"specialty" validate:"max=120"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=40"`
}

type Appointment struct {
	ID       int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title    string     `json:"title" validate:"required,max=200"`
	StartsAt time.Time  `json:"startsAt" validate:"required"`
	EndsAt   *time.Time `json:"endsAt"`
	Status   string     `json:"status"`
	Type     string     `json:"type" validate:"max=60"`
	Location string     `json:"location"`
	Provider string     `json:"provider"`
	DoctorID *int64     `json:"doctorId"`
	VictimID *int64     `json:"victimId"`
	Notes    string     `json:"notes"`
}

type Consent struct {
	ID          int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title       string     `json:"title" validate:"required,max=200"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	Version     string     `json:"version" validate:"max=20"`
	VictimID    *int64     `json:"victimId"`
	CreatedDate time.Time  `json:"createdDate" gorm:"autoCreateTime"`
	ExpiryDate  *time.Time `json:"expiryDate"`
	SignedDate  *time.Time `json:"signedDate"`
}

// Expired reports whether the consent's expiry date has passed.
func (c *Consent) Expired(now time.Time) bool {
	return c.ExpiryDate != nil && now.After(*c.ExpiryDate)
}

type CaseNote struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CaseID    int64     `json:"caseId" validate:"required"`
	Author    string    `json:"author" validate:"max=120"`
	Content   string    `json:"content" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}

type MedicalRecord struct {
	ID         int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	VictimID   int64      `json:"victimId" validate:"required"`
	DoctorID   *int64     `json:"doctorId"`
	Diagnosis  string     `json:"diagnosis"`
	Treatment  string     `json:"treatment"`
	RecordDate *time.Time `json:"recordDate"`
}

type LegalDocument struct {
	ID        int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	CaseID    *int64     `json:"caseId"`
	Title     string     `json:"title" validate:"required,max=200"`
	DocType   string     `json:"docType" validate:"max=60"`
	FiledDate *time.Time `json:"filedDate"`
	Notes     string     `json:"notes"`
}

// Document is upload metadata only; the file bytes are not stored.
type Document struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name       string    `json:"name" validate:"required,max=255"`
	Type       string    `json:"type" validate:"max=60"`
	SizeBytes  int64     `json:"sizeBytes" validate:"gte=0"`
	UploadedBy string    `json:"uploadedBy" validate:"max=120"`
	UploadedAt time.Time `json:"uploadedAt" gorm:"autoCreateTime"`
	CaseID     *int64    `json:"caseId"`
}

type FinancialAid struct {
	ID             int64           `json:"id" gorm:"primaryKey;autoIncrement:false"`
	VictimID       *int64          `json:"victimId"`
	Type           string          `json:"type" validate:"required,max=60"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(12,2)" validate:"gt=0"`
	AmountApproved decimal.Decimal `json:"amountApproved" gorm:"type:numeric(12,2)"`
	Status         string          `json:"status"`
	Purpose        string          `json:"purpose"`
	Notes          string          `json:"notes"`
	RequestDate    time.Time       `json:"requestDate" gorm:"autoCreateTime"`
	DecisionDate   *time.Time      `json:"decisionDate"`
}

type User struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Username     string    `json:"username" validate:"required,max=80"`
	Email        string    `json:"email" validate:"omitempty,email"`
	FullName     string    `json:"fullName" validate:"max=200"`
	PasswordHash string    `json:"-"`
	Password     string    `json:"password,omitempty" gorm:"-" validate:"omitempty,min=8,max=72"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Role struct {
	ID          int64  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description"`
}

type UserRole struct {
	ID     int64 `json:"id" gorm:"primaryKey;autoIncrement:false"`
	UserID int64 `json:"userId" validate:"required"`
	RoleID int64 `json:"roleId" validate:"required"`
}

type Notification struct {
	ID        int64      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Subject   string     `json:"subject" validate:"required,max=200"`
	Content   string     `json:"content"`
	Channel   string     `json:"channel" validate:"required,oneof=email sms"`
	SentDate  *time.Time `json:"sentDate"`
	Read      bool       `json:"read" gorm:"column:is_read"`
	Recipient string     `json:"recipient" validate:"max=200"`
	VictimID  *int64     `json:"victimId"`
}

func (Victim) TableName() string        { return "victims" }
func (Case) TableName() string          { return "cases" }
func (Doctor) TableName() string        { return "doctors" }
func (Appointment) TableName() string   { return "appointments" }
func (Consent) TableName() string       { return "consents" }
func (CaseNote) TableName() string      { return "case_notes" }
func (MedicalRecord) TableName() string { return "medical_records" }
func (LegalDocument) TableName() string { return "legal_documents" }
func (Document) TableName() string      { return "documents" }
func (FinancialAid) TableName() string  { return "financial_aid" }
func (User) TableName() string          { return "users" }
func (Role) TableName() string          { return "roles" }
func (UserRole) TableName() string      { return "user_roles" }
func (Notification) TableName() string  { return "notifications" }

// BeforeCreate stamps the open date.
func (c *Case) BeforeCreate(tx *gorm.DB) error {
	if c.OpenDate == nil {
		now := time.Now().UTC()
		c.OpenDate = &now
	}
	return nil
}

func (c *Case) AfterCreate(tx *gorm.DB) error {
	return RecountVictimCases(tx, c.VictimID)
}

// BeforeUpdate remembers the victim the case belonged to, so that both the
// old and the new victim get recounted.
func (c *Case) BeforeUpdate(tx *gorm.DB) error {
	if c.ID == 0 {
		return nil
	}
	var prev Case
	err := tx.Session(&gorm.Session{NewDB: true}).
		Table(Case{}.TableName()).Select("victim_id").
		Where("id = ?", c.ID).Take(&prev).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	c.previousVictimID = prev.VictimID
	return nil
}

func (c *Case) AfterUpdate(tx *gorm.DB) error {
	if err := RecountVictimCases(tx, c.VictimID); err != nil {
		return err
	}
	if !sameID(c.previousVictimID, c.VictimID) {
		return RecountVictimCases(tx, c.previousVictimID)
	}
	return nil
}

func (c *Case) AfterDelete(tx *gorm.DB) error {
	return RecountVictimCases(tx, c.VictimID)
}

// BeforeCreate rejects notes for unknown cases.
func (n *CaseNote) BeforeCreate(tx *gorm.DB) error {
	return n.checkCase(tx)
}

// BeforeUpdate rejects moving a note to an unknown case.
func (n *CaseNote) BeforeUpdate(tx *gorm.DB) error {
	return n.checkCase(tx)
}

func (n *CaseNote) checkCase(tx *gorm.DB) error {
	var count int64
	err := tx.Session(&gorm.Session{NewDB: true}).
		Table(Case{}.TableName()).Where("id = ?", n.CaseID).Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("case %d: %w", n.CaseID, ErrInvalidReference)
	}
	return nil
}

// AfterCreate touches the owning case so its lastUpdated follows its notes.
func (n *CaseNote) AfterCreate(tx *gorm.DB) error {
	return TouchCase(tx, n.CaseID)
}

func (n *CaseNote) AfterUpdate(tx *gorm.DB) error {
	return TouchCase(tx, n.CaseID)
}

// BeforeSave hashes a newly supplied password.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.Password = ""
	return nil
}

// CheckPassword compares a plaintext password with the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// TouchCase sets a case's lastUpdated to now.
func TouchCase(tx *gorm.DB, caseID int64) error {
	return tx.Session(&gorm.Session{NewDB: true}).
		Table(Case{}.TableName()).Where("id = ?", caseID).
		UpdateColumn("last_updated", time.Now().UTC()).Error
}

// RecountVictimCases stores the number of cases that reference the victim.
func RecountVictimCases(tx *gorm.DB, victimID *int64) error {
	if victimID == nil {
		return nil
	}
	session := tx.Session(&gorm.Session{NewDB: true})

	var count int64
	if err := session.Table(Case{}.TableName()).Where("victim_id = ?", *victimID).Count(&count).Error; err != nil {
		return err
	}
	return session.Table(Victim{}.TableName()).Where("id = ?", *victimID).
		UpdateColumn("cases_count", count).Error
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
