package models

import (
	"fmt"
	"sort"
	"time"
)

// Student is one roster entry, unique by roll number within a class
type Student struct {
	RollNo int    `json:"roll_no"`
	Name   string `json:"name"`
}

// Class represents a roster an exam is given to. The student list is owned
// by the class routes; the evaluation engine only reads it.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Section   string    `json:"section"`
	Subject   string    `json:"subject"`
	Students  []Student `json:"students"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// StudentByRoll returns the roster entry for a roll number, nil when absent
func (c *Class) StudentByRoll(rollNo int) *Student {
	for i := range c.Students {
		if c.Students[i].RollNo == rollNo {
			return &c.Students[i]
		}
	}
	return nil
}

// SortedStudents returns a copy of the roster ordered by ascending roll number
func (c *Class) SortedStudents() []Student {
	students := make([]Student, len(c.Students))
	copy(students, c.Students)
	sort.Slice(students, func(i, j int) bool {
		return students[i].RollNo < students[j].RollNo
	})
	return students
}

// Label returns the "name section" string used in prompts and result views
func (c *Class) Label() string {
	return fmt.Sprintf("%s %s", c.Name, c.Section)
}

// ClassSummary is the roster subset joined into evaluator listings
type ClassSummary struct {
	Name    string `json:"name"`
	Section string `json:"section"`
	Subject string `json:"subject"`
}

// Summary returns the class metadata without the student list
func (c *Class) Summary() ClassSummary {
	return ClassSummary{Name: c.Name, Section: c.Section, Subject: c.Subject}
}

// CreateClassRequest represents a request to create a class
type CreateClassRequest struct {
	Name    string `json:"name"`
	Section string `json:"section"`
	Subject string `json:"subject"`
}

// UpdateClassRequest represents a request to update class metadata
type UpdateClassRequest struct {
	Name    string `json:"name"`
	Section string `json:"section"`
	Subject string `json:"subject"`
}

// AddStudentRequest represents a request to add one roster entry
type AddStudentRequest struct {
	RollNo int    `json:"roll_no"`
	Name   string `json:"name"`
}
