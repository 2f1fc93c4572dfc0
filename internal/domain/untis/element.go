// Package untis contains the WebUntis domain model together with the pure
// timetable algorithms: date ranges, school year period splitting and lesson
// grouping. Nothing in this package performs I/O.
package untis

import (
	"fmt"
	"strings"
)

// ElementType identifies the kind of a timetable element.
type ElementType int

const (
	ElementClass   ElementType = 1
	ElementTeacher ElementType = 2
	ElementSubject ElementType = 3
	ElementRoom    ElementType = 4
	ElementStudent ElementType = 5
)

var elementTypeNames = map[ElementType]string{
	ElementClass:   "class",
	ElementTeacher: "teacher",
	ElementSubject: "subject",
	ElementRoom:    "room",
	ElementStudent: "student",
}

func (t ElementType) String() string {
	if name, ok := elementTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("element(%d)", int(t))
}

// IsValid reports whether t is one of the five known element types.
func (t ElementType) IsValid() bool {
	_, ok := elementTypeNames[t]
	return ok
}

// ParseElementType accepts a type name ("class", "klasse", "teacher", ...)
// or its numeric code.
func ParseElementType(s string) (ElementType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "class", "klasse", "1":
		return ElementClass, nil
	case "teacher", "2":
		return ElementTeacher, nil
	case "subject", "3":
		return ElementSubject, nil
	case "room", "4":
		return ElementRoom, nil
	case "student", "5":
		return ElementStudent, nil
	}
	return 0, fmt.Errorf("unknown element type %q", s)
}

// KeyType selects how an element is addressed in a timetable query.
type KeyType string

const (
	KeyID          KeyType = "id"
	KeyName        KeyType = "name"
	KeyExternalKey KeyType = "externalkey"
)

// IsValid reports whether k is a known key type.
func (k KeyType) IsValid() bool {
	return k == KeyID || k == KeyName || k == KeyExternalKey
}

// ElementField names a projected element attribute in timetable results.
type ElementField string

const (
	FieldID          ElementField = "id"
	FieldName        ElementField = "name"
	FieldLongName    ElementField = "longname"
	FieldExternalKey ElementField = "externalkey"
)

// Element holds the attributes every element kind shares.
type Element struct {
	ID          int    `json:"id"`
	ExternalKey string `json:"externalKey,omitempty"`
	Name        string `json:"name,omitempty"`
	LongName    string `json:"longName,omitempty"`
	Active      *bool  `json:"active,omitempty"`
	ForeColor   string `json:"foreColor,omitempty"`
	BackColor   string `json:"backColor,omitempty"`
}

// ElementRef is the identity of an element: its kind and its id.
type ElementRef struct {
	Type ElementType
	ID   int
}

func (r ElementRef) String() string {
	return fmt.Sprintf("%s with id %d", r.Type, r.ID)
}

// Identifiable is implemented by every element kind.
type Identifiable interface {
	Ref() ElementRef
}

// SameElement reports whether a and b denote the same element. Only kind
// and id take part in the comparison.
func SameElement(a, b Identifiable) bool {
	return a.Ref() == b.Ref()
}

// Class is a school class ("Klasse").
type Class struct {
	Element
	DepartmentID *int `json:"did,omitempty"`
	Teacher1ID   *int `json:"teacher1,omitempty"`
	Teacher2ID   *int `json:"teacher2,omitempty"`
}

func (c Class) Ref() ElementRef { return ElementRef{Type: ElementClass, ID: c.ID} }

// DepartmentRef is the {id} object WebUntis returns inside teacher records.
type DepartmentRef struct {
	ID int `json:"id"`
}

// Teacher is a teacher. LongName holds the last name.
type Teacher struct {
	Element
	Departments []DepartmentRef `json:"dids,omitempty"`
	FirstName   string          `json:"foreName,omitempty"`
}

func (t Teacher) Ref() ElementRef { return ElementRef{Type: ElementTeacher, ID: t.ID} }

// LastName returns the teacher's last name.
func (t Teacher) LastName() string { return t.LongName }

// Subject is a subject.
type Subject struct {
	Element
	AlternateName string `json:"alternateName,omitempty"`
}

func (s Subject) Ref() ElementRef { return ElementRef{Type: ElementSubject, ID: s.ID} }

// Room is a room.
type Room struct {
	Element
	DepartmentID *int   `json:"did,omitempty"`
	Building     string `json:"building,omitempty"`
}

func (r Room) Ref() ElementRef { return ElementRef{Type: ElementRoom, ID: r.ID} }

// Student is a student. LongName holds the last name.
type Student struct {
	Element
	FirstName string `json:"foreName,omitempty"`
	Key       string `json:"key,omitempty"`
	Gender    string `json:"gender,omitempty"`
}

func (s Student) Ref() ElementRef { return ElementRef{Type: ElementStudent, ID: s.ID} }

// LastName returns the student's last name.
func (s Student) LastName() string { return s.LongName }

// Department is a department.
type Department struct {
	ID       int    `json:"id"`
	Name     string `json:"name,omitempty"`
	LongName string `json:"longName,omitempty"`
}
