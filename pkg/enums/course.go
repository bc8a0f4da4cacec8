package enums

import "fmt"

// Course is the meal stage an item is served in.
type Course string

const (
	CourseEntree  Course = "entree"
	CoursePlat    Course = "plat"
	CourseDessert Course = "dessert"
	CourseBoisson Course = "boisson"
)

var validCourses = []Course{
	CourseEntree,
	CoursePlat,
	CourseDessert,
	CourseBoisson,
}

// String implements fmt.Stringer.
func (c Course) String() string {
	return string(c)
}

// IsValid reports whether the value is a known Course.
func (c Course) IsValid() bool {
	for _, candidate := range validCourses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCourse converts raw input into a Course.
func ParseCourse(value string) (Course, error) {
	for _, candidate := range validCourses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid course %q", value)
}
