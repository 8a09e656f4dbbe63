package constants

// Redis Key 前缀和格式常量
// 统一命名规范: screening:{module}:{entity}:{unique_id}
const (
	// KeyRoleSearchSession 岗位搜索黄金结果集缓存 (ZSET)
	// 格式: screening:search:session:{roleKey}
	KeyRoleSearchSessionPrefix = "screening:search:session:"

	// KeyRoleSearchLock 岗位搜索分布式锁
	// 格式: screening:search:lock:{roleKey}
	KeyRoleSearchLockPrefix = "screening:search:lock:"

	// KeyRoleSearchScore 岗位搜索明细缓存 (HASH: candidateID -> 结果JSON)
	// 格式: screening:search:detail:{roleKey}
	KeyRoleSearchDetailPrefix = "screening:search:detail:"

	// KeyFileMD5Set 原始简历文件MD5去重集合 (SET)
	KeyFileMD5Set = "screening:file:dedup_set"

	// KeyFileMD5ToUpload MD5到上传UUID的映射
	// 格式: screening:file:md5_to_uuid:{md5}
	KeyFileMD5ToUploadPrefix = "screening:file:md5_to_uuid:"
)
