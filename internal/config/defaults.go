package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Storage.RootPath == "" {
		cfg.Storage.RootPath = "/usr/local/var/honyaku/data/knowledge_bases"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/honyaku/data/uploads"
	}
	if cfg.Storage.TranslationsDir == "" {
		cfg.Storage.TranslationsDir = "/usr/local/var/honyaku/data/translations"
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = "gpt-3.5-turbo"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Translation.SourceLang == "" {
		cfg.Translation.SourceLang = "English"
	}
	if cfg.Translation.TargetLang == "" {
		cfg.Translation.TargetLang = "Traditional Chinese"
	}
	if cfg.Translation.Country == "" {
		cfg.Translation.Country = "Taiwan"
	}
	if cfg.Translation.ChunkSize == 0 {
		cfg.Translation.ChunkSize = 1000
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 3
	}
	if cfg.Query.SimilarityThreshold == 0 {
		cfg.Query.SimilarityThreshold = 0.7
	}
	if cfg.Upload.AllowedExtensions == nil {
		cfg.Upload.AllowedExtensions = []string{".pdf", ".txt", ".docx"}
	}
}
