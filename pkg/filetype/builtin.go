package filetype

// Builtins returns the stock definitions in registration order.
func Builtins() []Definition {
	return []Definition{
		{
			ID:         "video",
			Label:      "Video",
			Icon:       "film",
			Color:      "danger",
			MimeTypes:  []string{"video/*"},
			Extensions: []string{"mp4", "webm", "mov", "avi", "mkv", "m4v", "ogv", "wmv", "flv"},
			CanPreview: true,
			Viewer:     "video",
			Priority:   10,
		},
		{
			ID:         "image",
			Label:      "Image",
			Icon:       "photo",
			Color:      "success",
			MimeTypes:  []string{"image/*"},
			Extensions: []string{"jpg", "jpeg", "png", "gif", "webp", "svg", "bmp", "ico", "avif"},
			CanPreview: true,
			Viewer:     "image",
			Priority:   10,
		},
		{
			ID:         "audio",
			Label:      "Audio",
			Icon:       "musical-note",
			Color:      "warning",
			MimeTypes:  []string{"audio/*"},
			Extensions: []string{"mp3", "wav", "ogg", "flac", "aac", "m4a", "wma", "opus"},
			CanPreview: true,
			Viewer:     "audio",
			Priority:   10,
		},
		{
			ID:    "document",
			Label: "Document",
			Icon:  "document-text",
			Color: "info",
			MimeTypes: []string{
				"application/pdf",
				"text/*",
				"application/json",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				"application/vnd.ms-excel",
				"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				"application/vnd.ms-powerpoint",
				"application/vnd.openxmlformats-officedocument.presentationml.presentation",
			},
			Extensions: []string{"pdf", "txt", "md", "csv", "json", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "rtf", "odt"},
			CanPreview: true,
			Viewer:     "document",
			Priority:   5,
		},
	}
}

// Other is the default fallback. It never previews.
func Other() Definition {
	return Definition{
		ID:         "other",
		Label:      "File",
		Icon:       "document",
		Color:      "gray",
		CanPreview: false,
	}
}
