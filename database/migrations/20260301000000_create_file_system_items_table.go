package migrations

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/filemanager/app/models"
	"github.com/shashiranjanraj/filemanager/pkg/migration"
)

func init() {
	migration.Register("20260301000000_create_file_system_items_table", &CreateFileSystemItemsTable{})
}

type CreateFileSystemItemsTable struct{}

func (m *CreateFileSystemItemsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.FileSystemItem{})
}

func (m *CreateFileSystemItemsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.FileSystemItem{})
}
