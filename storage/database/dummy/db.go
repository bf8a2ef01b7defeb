package dummydb

import (
	"sync"

	"github.com/trezcool/escolar/core/school"
	"github.com/trezcool/escolar/core/user"
)

type (
	// DB is an in-memory database, used in tests & when conf.Database.Driver is "memory".
	DB struct {
		user   *userTable
		school *schoolTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTables struct {
		sync.RWMutex
		periods     map[string]school.Period
		subjects    map[string]school.Subject
		groups      map[string]school.Group
		enrollments map[string]school.Enrollment
		grades      map[string]school.GradeRecord
		sessions    map[string]school.ClassSession
		attendance  map[string]school.AttendanceRecord
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		school: &schoolTables{
			periods:     make(map[string]school.Period),
			subjects:    make(map[string]school.Subject),
			groups:      make(map[string]school.Group),
			enrollments: make(map[string]school.Enrollment),
			grades:      make(map[string]school.GradeRecord),
			sessions:    make(map[string]school.ClassSession),
			attendance:  make(map[string]school.AttendanceRecord),
		},
	}
	return db, nil
}
