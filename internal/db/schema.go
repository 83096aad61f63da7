package db

// SchemaSQL defines the process table holding one record per batch.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS process SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON process TYPE string;
    DEFINE FIELD IF NOT EXISTS files ON process TYPE array<object>;
    DEFINE FIELD IF NOT EXISTS files.* ON process TYPE object;
    DEFINE FIELD IF NOT EXISTS files.*.old_name ON process TYPE string;
    DEFINE FIELD IF NOT EXISTS files.*.new_name ON process TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS status ON process TYPE object;
    DEFINE FIELD IF NOT EXISTS status.type ON process TYPE string ASSERT $value IN ["processing", "completed"];
    DEFINE FIELD IF NOT EXISTS status.message ON process TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS created_at ON process TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON process TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS finished_at ON process TYPE option<datetime>;

    DEFINE INDEX IF NOT EXISTS process_owner_created ON process FIELDS user_id, created_at;
`
