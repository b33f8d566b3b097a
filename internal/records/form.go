package records

// FormData is the partial field set a form captured. Nil means the field was
// not supplied; the same shape is sent as the body of remote POST and PUT calls.
type FormData struct {
	Name     *string      `json:"name,omitempty"`
	Username *string      `json:"username,omitempty"`
	Email    *string      `json:"email,omitempty"`
	Phone    *string      `json:"phone,omitempty"`
	Website  *string      `json:"website,omitempty"`
	Address  *FormAddress `json:"address,omitempty"`
	Company  *FormCompany `json:"company,omitempty"`
}

type FormAddress struct {
	City *string `json:"city,omitempty"`
}

type FormCompany struct {
	Name *string `json:"name,omitempty"`
}

// Str returns a pointer to s, for building forms in code.
func Str(s string) *string {
	return &s
}

func (f FormData) City() *string {
	if f.Address == nil {
		return nil
	}
	return f.Address.City
}

func (f FormData) CompanyName() *string {
	if f.Company == nil {
		return nil
	}
	return f.Company.Name
}

// NewRecord builds a complete record from the form, defaulting every field the
// form did not supply.
func NewRecord(id int, form FormData) Record {
	return Record{
		ID:       id,
		Name:     deref(form.Name),
		Username: deref(form.Username),
		Email:    deref(form.Email),
		Phone:    deref(form.Phone),
		Website:  deref(form.Website),
		Address:  NewAddress(deref(form.City())),
		Company:  NewCompany(deref(form.CompanyName())),
	}
}

// Merge applies the supplied form fields to a copy of r. Nested objects keep
// every member except the one the form edits.
func Merge(r Record, form FormData) Record {
	out := r.Clone()
	assign(&out.Name, form.Name)
	assign(&out.Username, form.Username)
	assign(&out.Email, form.Email)
	assign(&out.Phone, form.Phone)
	assign(&out.Website, form.Website)
	if city := form.City(); city != nil {
		out.Address = out.Address.With("city", *city)
	}
	if name := form.CompanyName(); name != nil {
		out.Company = out.Company.With("name", *name)
	}
	return out
}

func assign(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
