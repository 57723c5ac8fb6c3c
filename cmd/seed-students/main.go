package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/exstem-roster/internal/config"
	"github.com/stemsi/exstem-roster/internal/database"
	"github.com/stemsi/exstem-roster/internal/logger"
	"github.com/stemsi/exstem-roster/internal/model"
	"github.com/stemsi/exstem-roster/internal/repository"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
	"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
	"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
	"Bagas Saputra", "Citra Kirana", "Dimas Anggara", "Elisa Novita", "Fikri Maulana",
	"Gali Rakasiwi", "Hani Hanifah", "Iqbal Ramadhan", "Jasmine Azzahra", "Kevin Sanjaya",
	"Larasati Dewi", "Miko Pambudi", "Nia Ramadhani", "Oscar Lawalata", "Puput Melati",
	"Reza Rahadian", "Sari Nila", "Tigor Siahaan", "Utari Maharani", "Vicky Prasetyo",
}

func main() {
	var (
		className string
		teacherID int64
		count     int
	)
	flag.StringVar(&className, "class", "XII TKJ 2", "Name of the class to enroll seeded students in")
	flag.Int64Var(&teacherID, "teacher", 1, "Teacher ID owning the class")
	flag.IntVar(&count, "n", len(names), "Number of students to seed")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	classRepo := repository.NewClassRepository(pool)
	studentRepo := repository.NewStudentRepository(pool, log)

	class, err := findOrCreateClass(ctx, classRepo, className, teacherID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare class")
	}
	log.Info().Int64("class_id", class.ID).Str("class", class.Name).Msg("Seeding students")

	if count > len(names) {
		count = len(names)
	}

	successCount := 0
	for i := 0; i < count; i++ {
		first, last, _ := strings.Cut(names[i], " ")
		student := model.Student{
			FirstName: first,
			LastName:  last,
			// Birthdates spread over 2006-2008.
			Birthdate: model.Date(2006+i%3, time.Month(1+i%12), 1+i%28),
		}

		created, err := studentRepo.Create(ctx, student)
		if err != nil {
			log.Error().Err(err).Str("name", names[i]).Msg("Error creating student")
			continue
		}
		if err := classRepo.Enroll(ctx, class.ID, created.ID); err != nil {
			log.Error().Err(err).Int64("student_id", created.ID).Msg("Error enrolling student")
			continue
		}

		successCount++
		if successCount%10 == 0 {
			log.Info().Int("created", successCount).Msg("Progress")
		}
	}

	avg, ok, err := studentRepo.AverageAge(ctx, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute average age")
	}
	if ok {
		log.Info().Float64("average_age", avg).Msg("Average student age")
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d students.\n", successCount, count)
}

func findOrCreateClass(ctx context.Context, repo *repository.ClassRepository, name string, teacherID int64) (*model.SchoolClass, error) {
	classes, err := repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	for i := range classes {
		if classes[i].Name == name {
			return &classes[i], nil
		}
	}

	class := &model.SchoolClass{Name: name, TeacherID: teacherID}
	if err := repo.Create(ctx, class); err != nil {
		return nil, err
	}
	return class, nil
}
