package config

import (
	"strconv"
	"strings"
	"time"
)

// Abilities understood by the authorization gate. Each one may be bound to a
// permission name through FILEMANAGER_PERMISSION_<ABILITY>.
var Abilities = []string{"view_any", "view", "create", "update", "delete", "delete_any", "download"}

// FileManagerConfig is the typed view of every FILEMANAGER_* key.
type FileManagerConfig struct {
	Mode        string
	Disk        string
	DBDirectory string
	StorageRoot string
	ShowHidden  bool
	Overwrite   bool

	AuthEnabled bool
	Permissions map[string]string
	AuthDisks   []string
	PublicDisks []string

	URLExpiration  time.Duration
	RoutePrefix    string
	MaxUploadBytes int64
	TreeCacheTTL   time.Duration

	MoveConcurrency int
	MoveRetries     int

	SessionCookie string
	SessionTTL    time.Duration
	SessionSecure bool
}

// FileManager assembles FileManagerConfig from the loaded values.
func FileManager() FileManagerConfig {
	_ = Load()

	mode := strings.ToLower(get("FILEMANAGER_MODE", "database"))
	if mode != "storage" {
		mode = "database"
	}

	perms := make(map[string]string, len(Abilities))
	for _, ability := range Abilities {
		if name := get("FILEMANAGER_PERMISSION_"+strings.ToUpper(ability), ""); name != "" {
			perms[ability] = name
		}
	}

	return FileManagerConfig{
		Mode:        mode,
		Disk:        get("FILEMANAGER_DISK", "local"),
		DBDirectory: strings.Trim(get("FILEMANAGER_DB_DIRECTORY", "filemanager"), "/"),
		StorageRoot: strings.Trim(get("FILEMANAGER_STORAGE_ROOT", ""), "/"),
		ShowHidden:  getBool("FILEMANAGER_SHOW_HIDDEN", false),
		Overwrite:   getBool("FILEMANAGER_OVERWRITE", false),

		AuthEnabled: getBool("FILEMANAGER_AUTH_ENABLED", true),
		Permissions: perms,
		AuthDisks:   getList("FILEMANAGER_AUTH_DISKS", "local,s3"),
		PublicDisks: getList("FILEMANAGER_PUBLIC_DISKS", "public"),

		URLExpiration:  time.Duration(getInt("FILEMANAGER_URL_EXPIRATION", 60)) * time.Minute,
		RoutePrefix:    strings.Trim(get("FILEMANAGER_ROUTE_PREFIX", "filemanager"), "/"),
		MaxUploadBytes: int64(getInt("FILEMANAGER_MAX_UPLOAD_BYTES", 100<<20)),
		TreeCacheTTL:   time.Duration(getInt("FILEMANAGER_TREE_CACHE_TTL", 60)) * time.Second,

		MoveConcurrency: getInt("FILEMANAGER_MOVE_CONCURRENCY", 4),
		MoveRetries:     getInt("FILEMANAGER_MOVE_RETRIES", 3),

		SessionCookie: get("FILEMANAGER_SESSION_COOKIE", "filemanager_session"),
		SessionTTL:    time.Duration(getInt("FILEMANAGER_SESSION_TTL", 120)) * time.Minute,
		SessionSecure: getBool("FILEMANAGER_SESSION_SECURE", AppEnv() == "production"),
	}
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(get(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(get(key, strconv.Itoa(fallback)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func getList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(get(key, fallback), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
