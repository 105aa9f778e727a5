package database

// Descriptor declares one table exposed over the uniform CRUD routes.
type Descriptor struct {
	// Path is the route segment under /api, e.g. "case-notes".
	Path       string
	Table      string
	PrimaryKey string
	Sequence   string
	// OrderBy is the list order; the primary key when empty.
	OrderBy string
	Model   interface{}
	// Affects lists the paths whose rows the model hooks rewrite when a
	// row of this table is written.
	Affects []string
}

// Order returns the ORDER BY expression for list queries.
func (d Descriptor) Order() string {
	if d.OrderBy != "" {
		return d.OrderBy
	}
	return d.PrimaryKey
}

var (
	Victims        = Descriptor{Path: "victims", Table: "victims", PrimaryKey: "id", Sequence: "victims_seq", Model: &Victim{}}
	Cases          = Descriptor{Path: "cases", Table: "cases", PrimaryKey: "id", Sequence: "cases_seq", OrderBy: "last_updated DESC", Model: &Case{}, Affects: []string{"victims"}}
	Doctors        = Descriptor{Path: "doctors", Table: "doctors", PrimaryKey: "id", Sequence: "doctors_seq", Model: &Doctor{}}
	Appointments   = Descriptor{Path: "appointments", Table: "appointments", PrimaryKey: "id", Sequence: "appointments_seq", OrderBy: "starts_at", Model: &Appointment{}}
	Consents       = Descriptor{Path: "consents", Table: "consents", PrimaryKey: "id", Sequence: "consents_seq", Model: &Consent{}}
	CaseNotes      = Descriptor{Path: "case-notes", Table: "case_notes", PrimaryKey: "id", Sequence: "case_notes_seq", OrderBy: "created_at DESC", Model: &CaseNote{}, Affects: []string{"cases"}}
	MedicalRecords = Descriptor{Path: "medical-recs", Table: "medical_records", PrimaryKey: "id", Sequence: "medical_records_seq", Model: &MedicalRecord{}}
	LegalDocuments = Descriptor{Path: "legal-docs", Table: "legal_documents", PrimaryKey: "id", Sequence: "legal_documents_seq", Model: &LegalDocument{}}
	Documents      = Descriptor{Path: "documents", Table: "documents", PrimaryKey: "id", Sequence: "documents_seq", OrderBy: "uploaded_at DESC", Model: &Document{}}
	FinancialAids  = Descriptor{Path: "financial-aid", Table: "financial_aid", PrimaryKey: "id", Sequence: "financial_aid_seq", OrderBy: "request_date DESC", Model: &FinancialAid{}}
	Users          = Descriptor{Path: "users", Table: "users", PrimaryKey: "id", Sequence: "users_seq", Model: &User{}}
	Roles          = Descriptor{Path: "roles", Table: "roles", PrimaryKey: "id", Sequence: "roles_seq", Model: &Role{}}
	UserRoles      = Descriptor{Path: "user-roles", Table: "user_roles", PrimaryKey: "id", Sequence: "user_roles_seq", Model: &UserRole{}}
	Notifications  = Descriptor{Path: "notifications", Table: "notifications", PrimaryKey: "id", Sequence: "notifications_seq", OrderBy: "sent_date DESC", Model: &Notification{}}
)

// Catalog lists every exposed table.
var Catalog = []Descriptor{
	Victims, Cases, Doctors, Appointments, Consents, CaseNotes, MedicalRecords,
	LegalDocuments, Documents, FinancialAids, Users, Roles, UserRoles, Notifications,
}
