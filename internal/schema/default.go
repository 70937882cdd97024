package schema

// DefaultRegistry builds the registry of the humanitarian entity tables
// served by the resource API. Infrastructure tables (audit log, sync
// bookkeeping, user accounts) are deliberately absent: they are reached
// through their own repositories, never through the dispatcher.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Polymorphic umbrella tables. A super-entity row carries only the
	// discriminator; concrete instances reference it by their super key.
	r.Register(&Table{
		Name: "pr_pentity",
		Fields: []Field{
			{Name: "instance_type", Type: TypeString, Readable: true, Writable: false},
		},
	})
	r.Register(&Table{
		Name: "org_site",
		Fields: []Field{
			{Name: "instance_type", Type: TypeString, Readable: true, Writable: false},
		},
	})

	r.Register(&Table{
		Name: "org_organisation",
		Fields: []Field{
			{Name: "name", Type: TypeString, Readable: true, Writable: true, Required: true, Unique: true,
				Validators: []Validator{NotEmpty(), MaxLength(128)}},
			{Name: "acronym", Type: TypeString, Readable: true, Writable: true,
				Validators: []Validator{MaxLength(16)}},
			{Name: "organisation_type", Type: TypeString, Readable: true, Writable: true,
				Validators: []Validator{InSet("gov", "ngo", "un", "private", "other")}},
			{Name: "website", Type: TypeString, Readable: true, Writable: true},
			{Name: "country", Type: TypeString, Readable: true, Writable: true,
				Validators: []Validator{MaxLength(2)}},
			{Name: "parent_id", Type: TypeReference, Readable: true, Writable: true, References: "org_organisation"},
			{Name: "comments", Type: TypeText, Readable: true, Writable: true},
		},
		NaturalKey:     []string{"name"},
		HierarchyField: "parent_id",
		AnonymousRead:  true,
		Components: []Component{
			{Name: "office", Table: "org_office", JoinField: "organisation_id"},
		},
		BlankOnDelete: []string{"name", "acronym"},
	})

	r.Register(&Table{
		Name: "org_office",
		Fields: []Field{
			{Name: "site_id", Type: TypeReference, Readable: true, Writable: false, References: "org_site"},
			{Name: "name", Type: TypeString, Readable: true, Writable: true, Required: true,
				Validators: []Validator{NotEmpty(), MaxLength(128)}},
			{Name: "organisation_id", Type: TypeReference, Readable: true, Writable: true, References: "org_organisation"},
			{Name: "office_type", Type: TypeString, Readable: true, Writable: true,
				Validators: []Validator{InSet("headquarters", "regional", "country", "satellite", "warehouse")}},
			{Name: "address", Type: TypeText, Readable: true, Writable: true},
			{Name: "lat", Type: TypeFloat, Readable: true, Writable: true},
			{Name: "lon", Type: TypeFloat, Readable: true, Writable: true},
		},
		Super:         &SuperLink{Table: "org_site", Key: "site_id"},
		AnonymousRead: true,
	})

	r.Register(&Table{
		Name: "pr_person",
		Fields: []Field{
			{Name: "pe_id", Type: TypeReference, Readable: true, Writable: false, References: "pr_pentity"},
			{Name: "first_name", Type: TypeString, Readable: true, Writable: true, Required: true,
				Validators: []Validator{NotEmpty(), MaxLength(64)}},
			{Name: "middle_name", Type: TypeString, Readable: true, Writable: true},
			{Name: "last_name", Type: TypeString, Readable: true, Writable: true,
				Validators: []Validator{MaxLength(64)}},
			{Name: "gender", Type: TypeString, Readable: true, Writable: true,
				Validators: []Validator{InSet("female", "male", "other", "unknown")}},
			{Name: "date_of_birth", Type: TypeDate, Readable: true, Writable: true},
			{Name: "comments", Type: TypeText, Readable: true, Writable: true},
		},
		Super: &SuperLink{Table: "pr_pentity", Key: "pe_id"},
		Components: []Component{
			{Name: "contact", Table: "pr_contact", JoinField: "person_id"},
		},
		BlankOnDelete: []string{"first_name", "middle_name", "last_name"},
	})

	r.Register(&Table{
		Name: "pr_contact",
		Fields: []Field{
			{Name: "person_id", Type: TypeReference, Readable: true, Writable: true, References: "pr_person"},
			{Name: "contact_method", Type: TypeString, Readable: true, Writable: true, Required: true,
				Validators: []Validator{NotEmpty(), InSet("email", "phone", "sms", "radio", "other")}},
			{Name: "value", Type: TypeString, Readable: true, Writable: true, Required: true,
				Validators: []Validator{NotEmpty()}},
		},
		BlankOnDelete: []string{"value"},
	})

	r.Register(&Table{
		Name: "hms_hospital",
		Fields: []Field{
			{Name: "site_id", Type: TypeReference, Readable: true, Writable: false, References: "org_site"},
			{Name: "name", Type: TypeString, Readable: true, Writable: true, Required: true, Unique: true,
				Validators: []Validator{NotEmpty(), MaxLength(128)}},
			{Name: "facility_type", Type: TypeString, Readable: true, Writable: true,
				Validators: []Validator{InSet("hospital", "field_hospital", "clinic", "health_center")}},
			{Name: "organisation_id", Type: TypeReference, Readable: true, Writable: true, References: "org_organisation"},
			{Name: "total_beds", Type: TypeInteger, Readable: true, Writable: true},
			{Name: "available_beds", Type: TypeInteger, Readable: true, Writable: true},
		},
		NaturalKey:    []string{"name"},
		Super:         &SuperLink{Table: "org_site", Key: "site_id"},
		AnonymousRead: true,
	})

	r.Register(&Table{
		Name: "inv_warehouse",
		Fields: []Field{
			{Name: "site_id", Type: TypeReference, Readable: true, Writable: false, References: "org_site"},
			{Name: "name", Type: TypeString, Readable: true, Writable: true, Required: true,
				Validators: []Validator{NotEmpty(), MaxLength(128)}},
			{Name: "organisation_id", Type: TypeReference, Readable: true, Writable: true, References: "org_organisation"},
		},
		Super: &SuperLink{Table: "org_site", Key: "site_id"},
		Components: []Component{
			{Name: "inv_item", Table: "inv_inv_item", JoinField: "warehouse_id"},
		},
	})

	r.Register(&Table{
		Name: "supply_item",
		Fields: []Field{
			{Name: "name", Type: TypeString, Readable: true, Writable: true, Required: true, Unique: true,
				Validators: []Validator{NotEmpty(), MaxLength(128)}},
			{Name: "um", Type: TypeString, Readable: true, Writable: true,
				Validators: []Validator{InSet("piece", "kit", "kg", "ton", "litre", "m", "pallet")}},
			{Name: "comments", Type: TypeText, Readable: true, Writable: true},
		},
		NaturalKey:    []string{"name"},
		AnonymousRead: true,
	})

	r.Register(&Table{
		Name: "inv_inv_item",
		Fields: []Field{
			{Name: "warehouse_id", Type: TypeReference, Readable: true, Writable: true, References: "inv_warehouse"},
			{Name: "item_id", Type: TypeReference, Readable: true, Writable: true, Required: true, References: "supply_item"},
			{Name: "quantity", Type: TypeFloat, Readable: true, Writable: true, Required: true},
			{Name: "expiry_date", Type: TypeDate, Readable: true, Writable: true},
		},
	})

	return r
}
