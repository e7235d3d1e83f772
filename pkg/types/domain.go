package types

// Model represents a model file discovered in the models directory.
type Model struct {
	// Stable identifier for the model (the file name).
	// example: tinyllama.Q4_K_M.gguf
	ID string `json:"id" example:"tinyllama.Q4_K_M.gguf"`
	// Human-friendly name.
	// example: tinyllama.Q4_K_M
	Name string `json:"name" example:"tinyllama.Q4_K_M"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/tinyllama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/tinyllama.Q4_K_M.gguf"`
	// File size in MB, used as the memory estimate when loading.
	// example: 638
	SizeMB int `json:"size_mb" example:"638"`
	// Container format guessed from the extension (gguf or bin).
	// example: gguf
	Format string `json:"format,omitempty" example:"gguf"`
}
