package config

// StorageConfig describes the disks booted by storage.Connect.
type StorageConfig struct {
	Default    string
	LocalRoot  string
	PublicRoot string
	URL        string
	S3         S3Settings
}

// S3Settings configure the optional "s3" disk. An empty Bucket disables it.
type S3Settings struct {
	Bucket   string
	Region   string
	Key      string
	Secret   string
	Endpoint string
	URL      string
}

// Storage reads STORAGE_* and S3_* keys.
func Storage() StorageConfig {
	_ = Load()
	return StorageConfig{
		Default:    get("STORAGE_DISK", "local"),
		LocalRoot:  get("STORAGE_LOCAL_ROOT", "storage"),
		PublicRoot: get("STORAGE_PUBLIC_ROOT", "storage/public"),
		URL:        get("STORAGE_URL", "http://localhost:8080/storage"),
		S3: S3Settings{
			Bucket:   get("S3_BUCKET", ""),
			Region:   get("S3_REGION", "us-east-1"),
			Key:      get("S3_KEY", ""),
			Secret:   get("S3_SECRET", ""),
			Endpoint: get("S3_ENDPOINT", ""),
			URL:      get("S3_URL", ""),
		},
	}
}
